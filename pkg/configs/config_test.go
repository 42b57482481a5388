package configs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := configs.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, configs.SQLite, cfg.DB.Type)
	assert.Equal(t, 260, cfg.Thumbnail.Width)
	assert.Equal(t, 180, cfg.Thumbnail.Height)
	assert.Equal(t, 50, cfg.Listing.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Security.FailurePenalty)
	assert.False(t, cfg.Upload.StrictChecksum)
	assert.Equal(t, configs.MQTypeGoChannel, cfg.MQ.Type)
}

func TestLoaderReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9099
  reload_config: false
storage:
  file_root: /srv/drop/files
  thumb_root: /srv/drop/thumbs
  temp_root: /srv/drop/tmp
lifecycle:
  sweep_cron: "0 * * * *"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("TAGDROP_LISTING_PAGE_SIZE", "20")

	loader, err := configs.NewLoader(dir)
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9099, cfg.Server.Port)
	assert.Equal(t, "/srv/drop/files", cfg.Storage.FileRoot)
	assert.Equal(t, "0 * * * *", cfg.Lifecycle.SweepCron)
	assert.Equal(t, 20, cfg.Listing.PageSize)
	assert.Same(t, cfg, loader.Current())
}

func TestLoaderWithoutFileUsesDefaults(t *testing.T) {
	loader, err := configs.NewLoader(t.TempDir())
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, configs.DefaultFileRoot, cfg.Storage.FileRoot)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := configs.Default()
	cfg.Storage.TempRoot = cfg.Storage.FileRoot

	assert.Error(t, cfg.Validate())

	cfg = configs.Default()
	cfg.KV.Type = "etcd"

	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	c := configs.DBConfig{Type: configs.SQLite, Database: "drop"}
	assert.Equal(t, "drop.db", c.GetDSN())

	c.Database = "/var/lib/tagdrop/meta.db"
	assert.Equal(t, "/var/lib/tagdrop/meta.db", c.GetDSN())

	c = configs.DBConfig{Type: configs.Pg, Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.GetDSN())

	c.Password = ""
	assert.Equal(t, "host=db port=5432 user=u dbname=d sslmode=disable", c.GetDSN())

	c = configs.DBConfig{Type: configs.MariaDB, Host: "db", Port: 3306, User: "u", Password: "p", Database: "d"}
	assert.Equal(t, "u:p@tcp(db:3306)/d?charset=utf8mb4&parseTime=True&loc=UTC", c.GetDSN())

	c.Type = "oracle"
	assert.Empty(t, c.GetDSN())
}

func TestDialect(t *testing.T) {
	assert.Equal(t, configs.DialectPostgres, configs.Pg.Dialect())
	assert.Equal(t, configs.DialectMySQL, configs.MariaDB.Dialect())
	assert.Equal(t, configs.DialectSQLite, configs.SQLite.Dialect())
	assert.Empty(t, configs.DBType("oracle").Dialect())
}
