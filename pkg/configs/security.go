package configs

import (
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultFailurePenalty = 3 * time.Second // 输入非法或认证失败时的延迟
)

// SecurityConfig 标签密钥与防爆破配置.
type SecurityConfig struct {
	// FailurePenalty 非法输入与认证失败在响应前的固定延迟.
	FailurePenalty time.Duration `mapstructure:"failure_penalty"`
	// SecretHashCost bcrypt 代价因子.
	SecretHashCost int `mapstructure:"secret_hash_cost" rule:"min=4,max=31"`
	// MaintenanceToken 非空时 POST /maintenance 需要携带 X-Maintenance-Token.
	MaintenanceToken string `mapstructure:"maintenance_token"`
}

func (c *SecurityConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("security.failure_penalty", DefaultFailurePenalty)
	v.SetDefault("security.secret_hash_cost", bcrypt.DefaultCost)
	v.SetDefault("security.maintenance_token", "")
}
