// Package app wires configuration, storage and the HTTP server for walletd.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/taskvip/walletcore/internal/config"
	"github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/http/api"
	"github.com/taskvip/walletcore/internal/http/api/admin"
	"github.com/taskvip/walletcore/internal/http/api/front"
	"github.com/taskvip/walletcore/internal/ledger"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/logging"
	"github.com/taskvip/walletcore/internal/notify"
	"github.com/taskvip/walletcore/internal/registry"
	"github.com/taskvip/walletcore/internal/settings"
	"github.com/taskvip/walletcore/internal/vip"
	"github.com/taskvip/walletcore/internal/withdrawal"
	"github.com/taskvip/walletcore/internal/ws"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Infof("migrations applied (%s)", db.DialectName(conn))
	return nil
}

// RunServer boots the wallet HTTP server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	logCloser, errLog := logging.Setup(conf.Logging)
	if errLog != nil {
		return errLog
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSnapshot := settings.RefreshDBConfigSnapshot(ctx, conn); errSnapshot != nil {
		return errSnapshot
	}

	locker, closeLocker, errLocker := buildLocker(ctx, conf.Redis)
	if errLocker != nil {
		return errLocker
	}
	defer closeLocker()

	svc, errServices := buildServices(conn, locker, conf)
	if errServices != nil {
		return errServices
	}

	cleaner := notify.NewRetentionCleaner(conn, conf.Notifications.RetentionDays)
	cleaner.Start(ctx)
	vip.NewExpiryPoller(svc.VIP).Start(ctx)

	gin.SetMode(conf.Server.Mode)
	engine := gin.New()
	engine.Use(logging.GinLogger(), gin.Recovery(), requestTimeout(conf.Wallet.LockTimeout))
	admin.RegisterHealthRoutes(engine, conn)
	front.RegisterFrontRoutes(engine, svc)
	admin.RegisterAdminRoutes(engine, svc)

	server := &http.Server{
		Addr:              conf.Server.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("walletd listening on %s (%s)", conf.Server.Listen, db.DialectName(conn))
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	log.Info("walletd stopped")
	return nil
}

func loadConfig(cfg config.AppConfig) (*config.Config, error) {
	if errEnv := config.LoadEnvFile(cfg.EnvFile); errEnv != nil {
		return nil, errEnv
	}
	return config.Load(config.ResolveConfigPath(cfg.ConfigPath))
}

// buildLocker returns a Redis-backed locker when an address is configured.
func buildLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		return lock.NewLocalLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if errPing := client.Ping(ctx).Err(); errPing != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("app: redis ping: %w", errPing)
	}
	locker := lock.NewRedisLocker(client, cfg.LockTTL)
	locker.OnRelease(func(key string, err error) {
		log.WithError(err).Warnf("redis lock %s released late", key)
	})
	return locker, func() { _ = client.Close() }, nil
}

func buildServices(conn *gorm.DB, locker lock.Locker, conf *config.Config) (api.Services, error) {
	plans, errPlans := vip.PlansFromConfig(conf.VIPPlans)
	if errPlans != nil {
		return api.Services{}, errPlans
	}
	hub := ws.NewHub()
	store := notify.NewGormEmitter(conn)
	emitter := notify.BestEffort(notify.Multi(store, notify.NewHubEmitter(hub)), conf.Notifications.EmitTimeout)

	ledgerStore := ledger.NewStore(conn, locker)
	tracker := vip.NewTracker(conn, ledgerStore, emitter, plans)
	return api.Services{
		DB:            conn,
		JWT:           conf.JWT,
		Ledger:        ledgerStore,
		VIP:           tracker,
		Registry:      registry.New(conn, locker, emitter),
		Withdrawals:   withdrawal.NewService(conn, ledgerStore, tracker, emitter, conf.Wallet.MinWithdrawalAmount),
		Notifications: store,
		Hub:           hub,
		Currency:      conf.Wallet.Currency,
		AutoAssignVIP: conf.Wallet.AutoAssignVIP,
	}, nil
}

// requestTimeout bounds each request, and with it every lock wait the request makes.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 || c.IsWebsocket() {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
