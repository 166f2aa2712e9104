package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"loofcloud/config"
	"loofcloud/internal/api"
	"loofcloud/internal/auth"
	"loofcloud/internal/cache"
	"loofcloud/internal/db"
	"loofcloud/internal/health"
	"loofcloud/internal/logs"
	"loofcloud/internal/middleware"
	"loofcloud/internal/models"
	"loofcloud/internal/provider"
	"loofcloud/internal/repo"
	"loofcloud/internal/security"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	redis      *cache.Redis
	Router     *mux.Router
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d
	if err := a.db.AutoMigrate(
		&models.User{},
		&models.Setting{},
		&models.AppConfig{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Redis */
	a.redis = cache.NewRedis(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)

	ctx := context.Background()

	/* 4) Ключ подписи: из БД, из конфига или сгенерированный */
	settings := repo.NewSettingStore(a.db)
	keeper, err := security.ResolveSecretKey(ctx, settings, a.cfg.Auth.SecretKey)
	if err != nil {
		log.Fatalf("secret key resolve failed: %v", err)
	}
	tokens := security.NewTokens(keeper, time.Duration(a.cfg.Auth.AccessTokenTTLMinutes)*time.Minute)

	/* 5) Сервисы */
	users := repo.NewUserStore(a.db)
	authSvc := auth.New(users, tokens)
	if err := authSvc.EnsureDefaultAdmin(ctx); err != nil {
		log.Fatalf("default admin bootstrap failed: %v", err)
	}

	client := provider.NewClient(provider.Endpoints{
		QrcodeAPI:   a.cfg.Provider.QrcodeAPI,
		PassportAPI: a.cfg.Provider.PassportAPI,
		WebAPI:      a.cfg.Provider.WebAPI,
	})
	session := provider.NewSession(client, settings, a.redis,
		time.Duration(a.cfg.Provider.CacheTTLSeconds)*time.Second)
	session.LoadFromDB(ctx)

	/* 6) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 7) Health */
	health.RegisterRoutes(a.Router, a.db, a.redis) // /healthz, /readyz

	/* 8) API v1 */
	api.Attach(a.Router, api.Dependencies{
		AUTH:    authSvc,
		SESSION: session,
		APPCFG:  repo.NewAppConfigStore(a.db),
		CFG:     a.cfg,
	})

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return nil
}
