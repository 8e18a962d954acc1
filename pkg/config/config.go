package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config", fx.Provide(Load))

type Config struct {
	AppEnv  string `mapstructure:"APP_ENV"`
	AppName string `mapstructure:"APP_NAME"`
	Server  struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	TLS struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Account struct {
		BaseURL      string        `mapstructure:"BASE_URL"`
		ServiceToken string        `mapstructure:"SERVICE_TOKEN"`
		Timeout      time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"ACCOUNT_SERVICE"`
	Security struct {
		// CodeSecret keys the voucher lookup hash. Rotating it invalidates
		// every outstanding code.
		CodeSecret string `mapstructure:"CODE_SECRET"`
		// RetainPlainCodes keeps the plaintext code on the voucher record so
		// admins can re-read it. Off by default: the hash is the sole
		// validation path and the plaintext is shown once at creation.
		RetainPlainCodes bool `mapstructure:"RETAIN_PLAIN_CODES"`
	} `mapstructure:"SECURITY"`
	RateLimit struct {
		MaxAttempts int64         `mapstructure:"MAX_ATTEMPTS"`
		Window      time.Duration `mapstructure:"WINDOW"`
	} `mapstructure:"RATE_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		zap.L().Warn("no config file found, using env and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "voucherledger")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("ACCOUNT_SERVICE.BASE_URL", "http://127.0.0.1:8081")
	v.SetDefault("ACCOUNT_SERVICE.TIMEOUT", 10*time.Second)
	v.SetDefault("RATE_LIMIT.MAX_ATTEMPTS", 5)
	v.SetDefault("RATE_LIMIT.WINDOW", time.Hour)
}
