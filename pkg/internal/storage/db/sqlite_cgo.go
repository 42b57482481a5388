//go:build !no_sqlite && cgo

package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/tagdrop/pkg/configs"
)

func init() {
	RegisterDialectorFactory(configs.DialectSQLite, openSQLite)
}

// openSQLite 使用 mattn/go-sqlite3，参数写法为 _busy_timeout 与 _journal_mode.
func openSQLite(cfg configs.DBConfig) gorm.Dialector {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.SQLitePath(), cfg.BusyTimeout)
	if cfg.WAL {
		dsn += "&_journal_mode=WAL"
	}

	return sqlite.Open(dsn)
}
