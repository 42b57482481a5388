//go:build !no_sqlite && !cgo

package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/tagdrop/pkg/configs"
)

func init() {
	RegisterDialectorFactory(configs.DialectSQLite, openSQLite)
}

// openSQLite 使用纯 Go 的 modernc 驱动，pragma 通过 _pragma 参数设置.
func openSQLite(cfg configs.DBConfig) gorm.Dialector {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.SQLitePath(), cfg.BusyTimeout)
	if cfg.WAL {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	return sqlite.Open(dsn)
}
