package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/core/cache"
	"go-tour-booking/internal/core/config"
	"go-tour-booking/internal/core/database"
	"go-tour-booking/internal/core/logger"
	"go-tour-booking/internal/core/mailer"
	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/feature/user"
	"go-tour-booking/internal/repo"
	"go-tour-booking/internal/service"
	"go-tour-booking/internal/transport/http/router"
	"go-tour-booking/pkg/utils"
)

// ConfigPath CONFIG_PATH 优先，否则用默认路径
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return config.DefaultPath
}

// Logger 按配置建 zap，并接管标准库 log 与 gin 的默认输出
func Logger(cfg *config.Config) (*zap.Logger, func()) {
	l, sync := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		AddCaller: true,
		Rotate: logger.FileRotate{
			Enable:     cfg.Log.File.Enable,
			Filename:   cfg.Log.File.Filename,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	undo := logger.RedirectStdLog(l, zapcore.InfoLevel)
	gin.DefaultWriter = logger.ToWriter(l.Named("gin"), zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(l.Named("gin"), zapcore.ErrorLevel)
	return l, func() {
		undo()
		sync()
	}
}

// Runtime 两个进程共用的依赖；Close 按打开的逆序释放
type Runtime struct {
	Deps    router.Deps
	closers []func() error
}

func (rt *Runtime) onClose(f func() error) { rt.closers = append(rt.closers, f) }

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.Deps.Log.Warn("close failed", zap.Error(err))
		}
	}
	rt.closers = nil
}

// Build 组装存储、缓存、邮件、令牌与服务层
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Runtime, error) {
	rt := &Runtime{Deps: router.Deps{Log: l, Cfg: cfg}}

	users, err := openUsers(ctx, rt, cfg, l)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var revoker service.Revoker
	if cfg.Redis.Enabled() {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rt.onClose(c.Close)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		users = repo.NewCachedUserRepo(users, c, time.Duration(cfg.Redis.UserTTLSec)*time.Second)
		revoker = cache.NewDenylist(c, cfg.Redis.DenyPrefix)
		l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	tokens := auth.NewJWTer([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.TTL())
	tokens.Leeway = cfg.JWT.Leeway()

	rt.Deps.Auth = service.NewAuthService(service.AuthDeps{
		Users:    users,
		Hasher:   utils.NewPasswordHasher(cfg.Auth.BcryptCost),
		Tokens:   tokens,
		Resets:   auth.ResetTokens{TTL: cfg.Auth.ResetTTL()},
		Notifier: newNotifier(cfg.Mail, cfg.App.IsDev(), l),
		Revoker:  revoker,
		Log:      l,
	})
	rt.Deps.Users = service.NewUserService(users, l)
	return rt, nil
}

func openUsers(ctx context.Context, rt *Runtime, cfg *config.Config, l *zap.Logger) (domain.UserRepository, error) {
	if cfg.DB.Driver == "memory" {
		l.Warn("using in-memory user store, data is lost on restart")
		return repo.NewMemoryUserRepo(), nil
	}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		Logger:             logger.Gorm(l, cfg.DB.LogLevel),
		Log:                l,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	rt.onClose(sqlDB.Close)
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&user.UserModel{}); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	return repo.NewUserRepo(db), nil
}

// newNotifier dev 下 log 驱动会打印正文，方便本地走重置流程
func newNotifier(m config.Mail, dev bool, l *zap.Logger) mailer.Notifier {
	var sender mailer.Sender
	switch m.Driver {
	case "smtp":
		sender = mailer.NewSMTPSender(mailer.SMTPOptions{
			Host:     m.Host,
			Port:     m.Port,
			Username: m.Username,
			Password: m.Password,
			Timeout:  time.Duration(m.TimeoutSec) * time.Second,
		})
	default:
		sender = mailer.NewLogSender(l, dev)
	}
	return mailer.New(sender, m.From, m.FromName)
}
