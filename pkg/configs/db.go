package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DBType 配置中的数据库类型，多个别名可对应同一方言.
type DBType string

const (
	PostgreSQL DBType = "postgresql"
	Postgres   DBType = "postgre"
	Pg         DBType = "pg"

	MySQL   DBType = "mysql"
	MariaDB DBType = "mariadb"

	SQLite DBType = "sqlite"
)

// Dialect 数据库方言，决定 DSN 格式与 gorm 驱动.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

var dialects = map[DBType]Dialect{
	PostgreSQL: DialectPostgres,
	Postgres:   DialectPostgres,
	Pg:         DialectPostgres,
	MySQL:      DialectMySQL,
	MariaDB:    DialectMySQL,
	SQLite:     DialectSQLite,
}

// Dialect 返回类型对应的方言，未知类型返回空串.
func (t DBType) Dialect() Dialect {
	return dialects[t]
}

// DBTypes 返回所有可配置的数据库类型.
func DBTypes() []DBType {
	return []DBType{PostgreSQL, Postgres, Pg, MySQL, MariaDB, SQLite}
}

const (
	DefaultDatabaseHost    = "localhost"
	DefaultDatabasePort    = 5432
	DefaultDatabaseUser    = "postgres"
	DefaultDatabaseName    = "tagdrop"
	DefaultDatabaseSSLMode = "disable"
	DefaultMaxIdleConns    = 5
	DefaultSlowThreshold   = 200  // 毫秒
	DefaultBusyTimeout     = 5000 // 毫秒
)

// DBConfig 元数据库配置.
type DBConfig struct {
	Type          DBType `mapstructure:"type"           rule:"oneof=postgresql postgre pg mysql mariadb sqlite"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"           rule:"min=1,max=65535"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"       rule:"required"`
	SSLMode       string `mapstructure:"sslmode"`
	MaxOpenConns  int    `mapstructure:"max_open_conns" rule:"min=0"`
	MaxIdleConns  int    `mapstructure:"max_idle_conns" rule:"min=0"`
	SlowThreshold int    `mapstructure:"slow_threshold" rule:"min=0"` // 慢查询阈值（毫秒），0 关闭
	AutoMigrate   bool   `mapstructure:"auto_migrate"`                // 启动时自动迁移表结构

	// SQLite 专用
	BusyTimeout int  `mapstructure:"busy_timeout" rule:"min=0"` // 锁等待（毫秒）
	WAL         bool `mapstructure:"wal"`                       // 启用 WAL 日志，上传与清理可并发读
}

// GetDSN 返回 postgres 与 mysql 的连接串；sqlite 返回文件路径，pragma 由驱动追加.
func (c *DBConfig) GetDSN() string {
	switch c.Type.Dialect() {
	case DialectPostgres:
		return c.postgresDSN()
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case DialectSQLite:
		return c.SQLitePath()
	default:
		return ""
	}
}

// postgresDSN 省略空值，避免 password= 之类的空键.
func (c *DBConfig) postgresDSN() string {
	pairs := []struct{ k, v string }{
		{"host", c.Host},
		{"port", fmt.Sprint(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", c.SSLMode},
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.v != "" {
			parts = append(parts, p.k+"="+p.v)
		}
	}

	return strings.Join(parts, " ")
}

// SQLitePath 数据库文件路径，未带 .db 后缀时补齐.
func (c *DBConfig) SQLitePath() string {
	if strings.HasSuffix(c.Database, ".db") {
		return c.Database
	}

	return c.Database + ".db"
}

func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", SQLite)
	v.SetDefault("db.host", DefaultDatabaseHost)
	v.SetDefault("db.port", DefaultDatabasePort)
	v.SetDefault("db.user", DefaultDatabaseUser)
	v.SetDefault("db.database", DefaultDatabaseName)
	v.SetDefault("db.sslmode", DefaultDatabaseSSLMode)
	v.SetDefault("db.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("db.slow_threshold", DefaultSlowThreshold)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.busy_timeout", DefaultBusyTimeout)
	v.SetDefault("db.wal", true)
}
