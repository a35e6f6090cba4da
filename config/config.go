package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode         string       `mapstructure:"mode"`
	Server       ServerConfig `mapstructure:"server"`
	Repositories struct {
		Postgres PostgresConfig `mapstructure:"postgres"`
		Redis    RedisConfig    `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Bcrypt    BcryptConfig    `mapstructure:"bcrypt"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

type ServerConfig struct {
	HTTPPort    string        `mapstructure:"HTTPPort"`
	MetricsPort string        `mapstructure:"metricsPort"`
	Timeout     time.Duration `mapstructure:"HTTPTimeout"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig carries the two signing secrets and their expiries. Access and
// refresh tokens are signed with distinct secrets so a leaked access key
// cannot be replayed as a refresh token.
type JWTConfig struct {
	AccessSecret    string        `mapstructure:"accessSecret"`
	RefreshSecret   string        `mapstructure:"refreshSecret"`
	AccessTokenTTL  time.Duration `mapstructure:"accessExpiry"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshExpiry"`
	Issuer          string        `mapstructure:"issuer"`
}

type BcryptConfig struct {
	Cost int `mapstructure:"cost"`
}

type BreakerConfig struct {
	CallTimeout   time.Duration `mapstructure:"callTimeout"`
	RollingWindow time.Duration `mapstructure:"rollingWindow"`
	CoolDown      time.Duration `mapstructure:"coolDown"`
	MinRequests   uint32        `mapstructure:"minRequests"`
	FailureRate   float64       `mapstructure:"failureRate"`
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refillTokens"`
	RefillInterval time.Duration `mapstructure:"refillInterval"`
	TTL            time.Duration `mapstructure:"ttl"`
	Prefix         string        `mapstructure:"prefix"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("AUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	if err = validate(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func validate(cfg *Config) error {
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt.accessSecret and jwt.refreshSecret must be set")
	}
	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		return fmt.Errorf("jwt access and refresh secrets must differ")
	}
	if cfg.Bcrypt.Cost < 10 {
		cfg.Bcrypt.Cost = 12
	}
	if cfg.Server.Timeout <= 0 {
		cfg.Server.Timeout = 60 * time.Second
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		cfg.JWT.AccessTokenTTL = 24 * time.Hour
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		cfg.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Breaker.CallTimeout <= 0 {
		cfg.Breaker.CallTimeout = 5 * time.Second
	}
	if cfg.Breaker.RollingWindow <= 0 {
		cfg.Breaker.RollingWindow = 10 * time.Second
	}
	if cfg.Breaker.CoolDown <= 0 {
		cfg.Breaker.CoolDown = 30 * time.Second
	}
	if cfg.Breaker.MinRequests == 0 {
		cfg.Breaker.MinRequests = 4
	}
	if cfg.Breaker.FailureRate <= 0 || cfg.Breaker.FailureRate > 1 {
		cfg.Breaker.FailureRate = 0.5
	}
	return nil
}
