//go:build !no_mysql

package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/tagdrop/pkg/configs"
)

// 标签与文件名列不超过 255，统一 varchar(255) 便于建索引.
const mysqlStringSize = 255

func init() {
	RegisterDialectorFactory(configs.DialectMySQL, func(cfg configs.DBConfig) gorm.Dialector {
		return mysql.New(mysql.Config{
			DSN:               cfg.GetDSN(),
			DefaultStringSize: mysqlStringSize,
		})
	})
}
