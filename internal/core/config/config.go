package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultPath = "./configs/config.local.yaml"

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name        string
	Env         string
	HTTP        HTTP
	Admin       AdminHTTP
	CORSOrigins []string `mapstructure:"corsOrigins"` // 为空则放行任意来源（带 cookie）
}

func (a App) IsDev() bool { return a.Env == "" || a.Env == "dev" }

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	LeewaySec         int
}

func (j JWT) TTL() time.Duration    { return time.Duration(j.AccessTokenTTLMin) * time.Minute }
func (j JWT) Leeway() time.Duration { return time.Duration(j.LeewaySec) * time.Second }

type Auth struct {
	CookieName            string
	CookieExpiresDays     int
	BcryptCost            int
	ResetTokenTTLMin      int
	HideUnknownResetEmail bool
	PublicBaseURL         string // 邮件里的链接前缀；为空时按请求推断
}

func (a Auth) ResetTTL() time.Duration { return time.Duration(a.ResetTokenTTLMin) * time.Minute }

type Redis struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	UserTTLSec int    `mapstructure:"userTTLSec"`
	DenyPrefix string `mapstructure:"denyPrefix"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Mail struct {
	Driver     string // smtp | log
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	TimeoutSec int
}

type Limits struct {
	RPS           float64
	Burst         int
	AuthRPS       float64
	AuthBurst     int
	MaxConcurrent int64
	MaxBodyBytes  int64
	TimeoutSec    int
}

type Config struct {
	App    App
	Log    Log
	JWT    JWT
	Auth   Auth
	DB     DB
	Redis  Redis `mapstructure:"redis"`
	Mail   Mail
	Limits Limits
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tour-booking")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 10)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("app.corsOrigins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.maxSizeMB", 100)
	v.SetDefault("log.file.maxBackups", 7)
	v.SetDefault("log.file.maxAgeDays", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "tour-booking")
	v.SetDefault("jwt.accessTokenTTLMin", 90*24*60)
	v.SetDefault("jwt.leewaySec", 0)

	v.SetDefault("auth.cookieName", "jwt")
	v.SetDefault("auth.cookieExpiresDays", 90)
	v.SetDefault("auth.bcryptCost", 12)
	v.SetDefault("auth.resetTokenTTLMin", 10)
	v.SetDefault("auth.hideUnknownResetEmail", false)
	v.SetDefault("auth.publicBaseURL", "")

	v.SetDefault("db.driver", "memory")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.userTTLSec", 60)
	v.SetDefault("redis.denyPrefix", "auth:revoked:")

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "hello@natours.io")
	v.SetDefault("mail.fromName", "Natours")
	v.SetDefault("mail.timeoutSec", 10)

	v.SetDefault("limits.rps", 100)
	v.SetDefault("limits.burst", 200)
	v.SetDefault("limits.authRps", 0.2)
	v.SetDefault("limits.authBurst", 10)
	v.SetDefault("limits.maxConcurrent", 512)
	v.SetDefault("limits.maxBodyBytes", 10<<10)
	v.SetDefault("limits.timeoutSec", 10)
}

// Load 读取配置：默认值 < yaml 文件（可缺省） < APP_ 前缀环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = DefaultPath
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

const minSecretLen = 32

const devSecret = "dev-only-secret-change-me-0123456789abcdef"

func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.App.IsDev() {
		c.JWT.Secret = devSecret
	}
	if len(c.JWT.Secret) < minSecretLen {
		return fmt.Errorf("jwt.secret must be at least %d bytes", minSecretLen)
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		return errors.New("jwt.accessTokenTTLMin must be positive")
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("db.driver %q not supported", c.DB.Driver)
	}
	switch c.Mail.Driver {
	case "log":
		// log 驱动会把重置链接（含明文 token）写进日志
		if !c.App.IsDev() && c.App.Env != "test" {
			return fmt.Errorf("mail.driver log is only allowed in dev/test, env is %q", c.App.Env)
		}
	case "smtp":
		if c.Mail.Host == "" {
			return errors.New("mail.host required for smtp driver")
		}
	default:
		return fmt.Errorf("mail.driver %q not supported", c.Mail.Driver)
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "jwt"
	}
	return nil
}
