package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	YooKassa YooKassaConfig `mapstructure:"yookassa"`
	WGEasy   WGEasyConfig   `mapstructure:"wg_easy"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Email    EmailConfig    `mapstructure:"email"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type YooKassaConfig struct {
	ShopID    string `mapstructure:"shop_id"`
	SecretKey string `mapstructure:"secret_key"`
	ReturnURL string `mapstructure:"return_url"`
}

type WGEasyConfig struct {
	URL            string `mapstructure:"url"`
	Password       string `mapstructure:"password"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BillingConfig struct {
	Currency             string  `mapstructure:"currency"`
	AddonPrice           float64 `mapstructure:"addon_price"`
	AddonPeriodDays      int     `mapstructure:"addon_period_days"`
	ReferralBonusPercent int     `mapstructure:"referral_bonus_percent"`
	ReferralTrialDays    int     `mapstructure:"referral_trial_days"`
	ReferralFixedBonus   float64 `mapstructure:"referral_fixed_bonus"`
}

type WatcherConfig struct {
	PollSeconds    int `mapstructure:"poll_seconds"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type SweepConfig struct {
	PaymentIntervalSeconds int    `mapstructure:"payment_interval_seconds"`
	PaymentBatchSize       int    `mapstructure:"payment_batch_size"`
	EnforceIntervalSeconds int    `mapstructure:"enforce_interval_seconds"`
	CleanupQueue           string `mapstructure:"cleanup_queue"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults 补全未配置的业务参数
func applyDefaults(cfg *Config) {
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "RUB"
	}
	if cfg.Billing.AddonPeriodDays <= 0 {
		cfg.Billing.AddonPeriodDays = 30
	}
	if cfg.Watcher.PollSeconds <= 0 {
		cfg.Watcher.PollSeconds = 10
	}
	if cfg.Watcher.TimeoutSeconds <= 0 {
		cfg.Watcher.TimeoutSeconds = 600
	}
	if cfg.Sweep.PaymentIntervalSeconds <= 0 {
		cfg.Sweep.PaymentIntervalSeconds = 60
	}
	if cfg.Sweep.PaymentBatchSize <= 0 {
		cfg.Sweep.PaymentBatchSize = 20
	}
	if cfg.Sweep.EnforceIntervalSeconds <= 0 {
		cfg.Sweep.EnforceIntervalSeconds = 15
	}
	if cfg.Sweep.CleanupQueue == "" {
		cfg.Sweep.CleanupQueue = "peer_cleanup"
	}
	if cfg.WGEasy.TimeoutSeconds <= 0 {
		cfg.WGEasy.TimeoutSeconds = 20
	}
}
