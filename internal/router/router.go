package router

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"pet-clinical-history/docs"
	"pet-clinical-history/internal/adapters/auth/jwt"
	"pet-clinical-history/internal/adapters/capabilities/roles"
	"pet-clinical-history/internal/adapters/mail/logmail"
	"pet-clinical-history/internal/adapters/photos/local"
	"pet-clinical-history/internal/adapters/ratelimit"
	mem "pet-clinical-history/internal/adapters/storage/memory"
	pg "pet-clinical-history/internal/adapters/storage/postgres"
	"pet-clinical-history/internal/domain/lifecycle"
	"pet-clinical-history/internal/domain/owners"
	"pet-clinical-history/internal/domain/pets"
	"pet-clinical-history/internal/domain/records"
	"pet-clinical-history/internal/domain/users"
	"pet-clinical-history/internal/middleware"
	"pet-clinical-history/internal/platform/config"
	"pet-clinical-history/internal/platform/logger"
	"pet-clinical-history/internal/platform/metrics"
	platformredis "pet-clinical-history/internal/platform/redis"
	"pet-clinical-history/internal/ports/auth"
	"pet-clinical-history/internal/ports/mail"
	"pet-clinical-history/internal/ports/photos"
	portratelimit "pet-clinical-history/internal/ports/ratelimit"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Config config.Config
	Logger logger.Logger

	// Registry para /metrics. Nil => registry propio.
	Registry *prometheus.Registry

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: limiter y revocación compartidos entre réplicas.
	Redis *platformredis.Client

	// Nil => fotos en disco bajo Config.PhotoDir.
	Photos photos.Store

	// Nil => los correos solo se registran en el log.
	Mailer mail.Sender
}

func NewRouter(opts Options) (http.Handler, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	mt := metrics.New(reg)

	// Auth
	issuer := jwt.NewIssuer(jwt.Config{SigningKey: cfg.JWTSigningKey, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL})
	var (
		revoker auth.Revoker
		limiter portratelimit.Limiter
	)
	if opts.Redis != nil {
		revoker = jwt.NewRedisRevocationList(opts.Redis.Client)
		limiter = ratelimit.NewRedisLimiter(opts.Redis.Client)
	} else {
		revoker = jwt.NewMemoryRevocationList()
		limiter = ratelimit.NewMemoryLimiter()
	}

	resolver := roles.NewResolver()

	// Storage
	var (
		petRepo    pets.Repository
		recordRepo records.Repository
		ownerRepo  owners.Repository
		userRepo   users.Repository
		runner     lifecycle.Runner
	)
	if opts.DB != nil {
		petRepo = pg.NewPetsRepo(opts.DB)
		recordRepo = pg.NewRecordsRepo(opts.DB)
		ownerRepo = pg.NewOwnersRepo(opts.DB)
		userRepo = pg.NewUsersRepo(opts.DB)
		runner = pg.NewLifecycleRunner(opts.DB)
	} else {
		db := mem.NewDB()
		petRepo = mem.NewPetRepo(db)
		recordRepo = mem.NewRecordRepo(db)
		ownerRepo = mem.NewOwnerRepo(db)
		userRepo = mem.NewUserRepo(db)
		runner = mem.NewLifecycleRunner(db)
	}

	photoStore := opts.Photos
	photoDir := ""
	if photoStore == nil {
		photoDir = strings.TrimSpace(cfg.PhotoDir)
		if photoDir == "" {
			photoDir = "storage/pet-photos"
		}
		photoStore = local.NewStore(photoDir)
	}

	mailer := opts.Mailer
	if mailer == nil {
		mailer = logmail.NewSender(log.With(map[string]any{"component": "mail"}))
	}

	manager, err := lifecycle.NewManager(runner,
		lifecycle.WithLogger(log.With(map[string]any{"component": "lifecycle"})),
		lifecycle.WithMetrics(mt),
	)
	if err != nil {
		return nil, err
	}

	// Services por módulo
	ownersSvc := owners.NewService(ownerRepo)
	petsSvc := pets.NewService(pets.Deps{
		Repo:      petRepo,
		Owners:    ownersSvc,
		Photos:    photoStore,
		Lifecycle: manager,
		Logger:    log.With(map[string]any{"component": "pets"}),
		Metrics:   mt,
	})
	recordsSvc := records.NewService(recordRepo)
	usersSvc := users.NewService(users.Deps{
		Repo:         userRepo,
		Owners:       ownersSvc,
		Issuer:       issuer,
		Revoker:      revoker,
		Mailer:       mailer,
		Limiter:      limiter,
		Logger:       log.With(map[string]any{"component": "users"}),
		Metrics:      mt,
		VerifyLimit:  cfg.VerifyEmailLimit,
		VerifyWindow: cfg.VerifyEmailWindow,

		ExposeVerificationCode: cfg.DevAuth,
	})

	if cfg.AdminEmail != "" {
		if _, err := usersSvc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	var verifier auth.AuthVerifier // nil => modo dev (headers X-Debug-*)
	if !cfg.DevAuth {
		verifier = jwt.NewVerifier(issuer, revoker, jwt.WithAccountStatus(usersSvc))
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(log))
	r.Use(middleware.AccessLog(log))

	r.Use(middleware.AuthContext(verifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ready", readyHandler(opts.DB, opts.Redis))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	docs.SwaggerInfo.BasePath = "/"
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if photoDir != "" {
		// Las referencias locales son rutas relativas; se sirven tal cual.
		prefix := "/" + strings.Trim(filepath.ToSlash(filepath.Clean(photoDir)), "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(photoDir))))
	}

	// Rutas por módulo
	users.RegisterRoutes(r, usersSvc, resolver)
	owners.RegisterRoutes(r, ownersSvc, resolver)
	pets.RegisterRoutes(r, petsSvc, resolver)
	records.RegisterRoutes(r, recordsSvc, petsSvc, resolver)

	return r, nil
}

// readyHandler verifica las dependencias externas configuradas.
func readyHandler(db *sql.DB, rdb *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
