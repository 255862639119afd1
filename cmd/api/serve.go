package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pet-clinical-history/internal/adapters/mail/httpmail"
	"pet-clinical-history/internal/adapters/photos/s3"
	pg "pet-clinical-history/internal/adapters/storage/postgres"
	"pet-clinical-history/internal/platform/config"
	"pet-clinical-history/internal/platform/logger"
	platformredis "pet-clinical-history/internal/platform/redis"
	"pet-clinical-history/internal/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	migrate         bool
	shutdownTimeout time.Duration
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Levanta el servidor HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), serveOpts)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveOpts.migrate, "migrate", false, "aplica migraciones pendientes antes de arrancar (requiere DB_DSN)")
	serveCmd.Flags().DurationVar(&serveOpts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "tiempo máximo para drenar requests al apagar")
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.shutdownTimeout <= 0 {
		opts.shutdownTimeout = 10 * time.Second
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()

	log, err := logger.NewFromEnv()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if opts.migrate {
			applied, err := pg.Migrate(ctx, db)
			if err != nil {
				return err
			}
			log.Info("migrations applied", map[string]any{"applied": applied})
		}
	}

	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	ropts := router.Options{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		DB:       db,
		Redis:    rdb,
	}

	if cfg.PhotoS3Bucket != "" {
		store, err := s3.NewFromEnv(ctx, cfg.PhotoS3Bucket, cfg.PhotoS3Prefix)
		if err != nil {
			return err
		}
		ropts.Photos = store
	}

	if cfg.MailAPIURL != "" {
		sender, err := httpmail.NewSender(httpmail.Config{
			BaseURL: cfg.MailAPIURL,
			APIKey:  cfg.MailAPIKey,
			From:    cfg.MailFrom,
			Timeout: 10 * time.Second,
		})
		if err != nil {
			return err
		}
		ropts.Mailer = sender
	}

	h, err := router.NewRouter(ropts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", map[string]any{
			"addr":     cfg.Addr,
			"storage":  storageName(db),
			"dev_auth": cfg.DevAuth,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
		defer cancel()
		log.Info("shutting down", nil)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func storageName(db *sql.DB) string {
	if db != nil {
		return "postgres"
	}
	return "memory"
}
