package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"wopi-gateway/config"
	_ "wopi-gateway/docs"
	"wopi-gateway/internal/discovery"
	"wopi-gateway/internal/handler"
	"wopi-gateway/internal/ldap"
	"wopi-gateway/internal/ltpa"
	"wopi-gateway/internal/metrics"
	"wopi-gateway/internal/ports"
	"wopi-gateway/internal/repository"
	"wopi-gateway/internal/security"
	"wopi-gateway/internal/service"
	"wopi-gateway/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title WOPI gateway
// @version 1.0
// @description Шлюз совместного редактирования документов: WOPI хост, мост идентификации и API приложения

// @host localhost:8080

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := flag.String("config", envOr("WOPI_GATEWAY_CONFIG", "config.yaml"), "путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger, err := util.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Ошибка создания логгера: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	db, err := config.SetupDatabase(cfg.DatabaseConfig.DSN)
	if err != nil {
		logger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Ошибка при закрытии БД", zap.Error(err))
		}
	}()

	redisClient, err := config.SetupRedis(&cfg.RedisConfig)
	if err != nil {
		logger.Fatal("Ошибка подключения к Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Ошибка при закрытии Redis", zap.Error(err))
		}
	}()

	m := metrics.New()

	fileRepo := repository.NewFileRepository(db)
	lockRepo := repository.NewLockRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	userRepo := repository.NewUserRepository(db)
	shareRepo := repository.NewShareRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.WOPI.CacheTTL)

	s3Service, err := service.NewS3Service(ctx, &cfg.S3Config)
	if err != nil {
		logger.Fatal("Ошибка создания S3 сервиса", zap.Error(err))
	}

	accessTokens, err := security.NewAccessTokenCodec(cfg.AccessToken.Secret, cfg.AccessToken.TTL)
	if err != nil {
		logger.Fatal("Ошибка создания кодека access token", zap.Error(err))
	}
	jwtService := security.NewJWTService(&cfg.JWT)

	directory, sso := setupIdentitySources(cfg, logger)
	discoveryClient := discovery.NewClient(cfg.Discovery, cfg.Server.WOPIBaseURL, cacheRepo, m, logger)

	wopiService := service.NewWOPIService(service.WOPIRepositories{
		Files:    fileRepo,
		Locks:    lockRepo,
		Versions: versionRepo,
		Users:    userRepo,
		Audit:    auditRepo,
		Cache:    cacheRepo,
	}, s3Service, accessTokens, &cfg.WOPI, cfg.Server.WOPIBaseURL, logger)
	editorService := service.NewEditorService(fileRepo, shareRepo, accessTokens, discoveryClient, logger)
	authService := service.NewAuthenticationService(cfg.Auth.Mode, db, userRepo, jwtService, directory, sso, m, logger)

	wopiHandler := handler.NewWOPIHandler(wopiService, m, cfg.WOPI.MaxBodySize, logger)
	authHandler := handler.NewAuthenticationHandler(authService, logger)
	editorHandler := handler.NewEditorHandler(editorService, logger)

	srv, router := config.SetupServer(cfg.Server.Addr)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Method(http.MethodGet, "/metrics", m.Handler())
	router.Get("/healthz", healthz(db))

	wopiHandler.RegisterRoutes(router, accessTokens)
	setupAuthRoutes(router, authHandler, jwtService, cfg)
	setupEditorRoutes(router, editorHandler, jwtService, cfg)

	logger.Info("шлюз сконфигурирован",
		zap.String("auth_mode", cfg.Auth.Mode),
		zap.String("wopi_base_url", cfg.Server.WOPIBaseURL),
		zap.String("discovery_url", cfg.Discovery.URL))

	runServer(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

// setupIdentitySources : LDAP и LTPA поднимаются только для режимов, которые их используют
func setupIdentitySources(cfg *config.AppConfig, logger *zap.Logger) (ports.DirectoryClient, ports.SSOValidator) {
	var (
		directory ports.DirectoryClient
		sso       ports.SSOValidator
	)

	switch cfg.Auth.Mode {
	case config.AuthModeLDAP, config.AuthModeLDAPLTPA, config.AuthModeHybrid:
		directory = ldap.NewClient(cfg.LDAP, logger)
	}

	switch cfg.Auth.Mode {
	case config.AuthModeLTPA, config.AuthModeLDAPLTPA, config.AuthModeHybrid:
		ltpaService, err := ltpa.NewService(cfg.LTPA, logger)
		if err != nil {
			logger.Fatal("Ошибка инициализации LTPA", zap.Error(err))
		}
		sso = ltpaService
	}

	return directory, sso
}

func setupAuthRoutes(r chi.Router, h *handler.AuthenticationHandler, jwtService *security.JWTService, cfg *config.AppConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(security.JWTMiddleware(jwtService, cfg.Admin.AdminToken))
			r.Get("/me", h.GetCurrentUser)
		})
	})
}

func setupEditorRoutes(r chi.Router, h *handler.EditorHandler, jwtService *security.JWTService, cfg *config.AppConfig) {
	r.Group(func(r chi.Router) {
		r.Use(security.JWTMiddleware(jwtService, cfg.Admin.AdminToken))
		r.Post("/api/files/{file_id}/editor", h.OpenEditor)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(security.RequireAdmin)
			r.Post("/discovery/clear", h.ClearDiscoveryCache)
		})
	})
}

func healthz(db *config.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			zap.L().Warn("БД не отвечает", zap.Error(err))
			util.HandleError(w, "БД недоступна", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func runServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("сервер запущен", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("ошибка работы сервера", zap.Error(err))
		}
	case sig := <-signalChannel:
		logger.Info("получен сигнал остановки работы сервера", zap.String("signal", sig.String()))
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		logger.Error("ошибка при остановке сервера", zap.Error(err))
	} else {
		logger.Info("Сервер успешно остановлен")
	}
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
