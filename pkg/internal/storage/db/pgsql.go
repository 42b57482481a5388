//go:build !no_postgres

package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/tagdrop/pkg/configs"
)

func init() {
	RegisterDialectorFactory(configs.DialectPostgres, func(cfg configs.DBConfig) gorm.Dialector {
		return postgres.New(postgres.Config{DSN: cfg.GetDSN()})
	})
}
