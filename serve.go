package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "LIBRA-backend/docs"
	"LIBRA-backend/internal/catalog"
	"LIBRA-backend/internal/circulation"
	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/config"
	"LIBRA-backend/internal/platform/db"
	"LIBRA-backend/internal/platform/logging"
	"LIBRA-backend/internal/platform/middleware"
)

func newServeCmd() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "API サーバを起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "起動前にマイグレーションを適用する")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, autoMigrate bool) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("starting", "mode", cfg.Mode, "version", cfg.Version)

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("connected to DB", "driver", cfg.DB.Driver, "name", cfg.DB.DBName)

	if autoMigrate {
		if err := db.Migrate(conn, cfg.DB.Driver); err != nil {
			return err
		}
	}

	r, err := newRouter(cfg, conn, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled() {
			certFile, keyFile := cfg.CertPaths()
			logger.Info("listening", "addr", cfg.Server.Addr, "tls", true)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logger.Info("listening", "addr", cfg.Server.Addr, "tls", false)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter はミドルウェアと各ドメインのルートを組み立てる
func newRouter(cfg *config.Config, conn *sql.DB, logger *slog.Logger) (*gin.Engine, error) {
	perDay, err := cfg.FinePerDay()
	if err != nil {
		return nil, err
	}

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())
	r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	_ = r.SetTrustedProxies(nil)

	if origins := cfg.Server.CORSOrigins; cfg.IsDevelopment() || len(origins) > 0 {
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	if cfg.IsDevelopment() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// /api/v1 はすべて要認証
	api := r.Group("/api/v1", auth.RequireAuth([]byte(cfg.Auth.JWTSecret)))
	admin := auth.RequireRole(string(circulation.RoleAdmin))

	circulation.RegisterRoutes(api, admin, circulation.NewService(
		circulation.NewStore(conn),
		circulation.NewFinePolicy(perDay),
		circulation.WithLogger(logger),
	))
	catalog.RegisterRoutes(api, admin, catalog.NewService(conn, logger))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})
	return r, nil
}
