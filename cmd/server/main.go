// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
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
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	admissionhandler "custodia/internal/admission/handler"
	admissionmetrics "custodia/internal/admission/metrics"
	admissionservice "custodia/internal/admission/service"
	admissionstore "custodia/internal/admission/store"
	"custodia/internal/audit"
	"custodia/internal/audit/relay"
	auditmem "custodia/internal/audit/store/memory"
	auditpg "custodia/internal/audit/store/postgres"
	casehandler "custodia/internal/casefile/handler"
	caseservice "custodia/internal/casefile/service"
	casestore "custodia/internal/casefile/store"
	evidencehandler "custodia/internal/evidence/handler"
	evidencemetrics "custodia/internal/evidence/metrics"
	evidenceservice "custodia/internal/evidence/service"
	evidencestore "custodia/internal/evidence/store"
	identityhandler "custodia/internal/identity/handler"
	identitymodels "custodia/internal/identity/models"
	identityservice "custodia/internal/identity/service"
	identitystore "custodia/internal/identity/store"
	"custodia/internal/identity/token"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/postgres"
	platformredis "custodia/internal/platform/redis"
	"custodia/internal/ratelimit"
	httptransport "custodia/internal/transport/http"
	"custodia/migrations"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
	"custodia/pkg/secrets"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("could not connect to postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Migrate(db); err != nil {
			log.Error("could not run migrations", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no database configured, running with in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("could not connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	deps, timelineRelay, err := buildServices(cfg, db, log)
	if err != nil {
		log.Error("could not wire services", "error", err)
		os.Exit(1)
	}
	deps.Logger = log
	deps.Limiter = limiterOrNil(ratelimit.NewFixedWindow(redisClient, cfg.SubmitLimit, cfg.SubmitWindow))
	deps.Health = func() error {
		if db != nil {
			return db.Ping()
		}
		return nil
	}

	srv := httpserver.New(cfg.Addr, httptransport.New(deps))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting custodia", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if timelineRelay != nil {
		group.Go(func() error {
			err := timelineRelay.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildServices assembles the domain stack on either postgres or in-memory
// stores.
func buildServices(cfg config.Config, db *sql.DB, log *slog.Logger) (httptransport.Deps, *relay.Relay, error) {
	var (
		caseStore      caseservice.CaseStore
		evidenceStore  evidencestore.Store
		requestStore   admissionstore.Store
		accountStore   identityservice.AccountStore
		auditStore     audit.Store
		txRunner       txcontext.Runner
		timelineOutbox *auditpg.Store
	)
	if db != nil {
		caseStore = casestore.NewPostgres(db)
		evidenceStore = evidencestore.NewPostgres(db)
		requestStore = admissionstore.NewPostgres(db)
		accountStore = identitystore.NewPostgres(db)
		timelineOutbox = auditpg.New(db)
		auditStore = timelineOutbox
		txRunner = txcontext.NewSQLRunner(db)
	} else {
		caseStore = casestore.NewInMemory()
		evidenceStore = evidencestore.NewInMemory()
		requestStore = admissionstore.NewInMemory()
		accountStore = identitystore.NewInMemory()
		auditStore = auditmem.New()
		txRunner = txcontext.NoopRunner{}
	}
	publisher := audit.NewPublisher(auditStore)

	tokens := token.NewJWTService(cfg.JWTSigningKey, cfg.TokenTTL)
	identitySvc := identityservice.New(accountStore, tokens,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(publisher),
	)
	if err := bootstrapAdmin(cfg, accountStore, log); err != nil {
		return httptransport.Deps{}, nil, err
	}

	caseSvc := caseservice.New(caseStore, publisher, caseservice.WithLogger(log))

	evidenceSvc := evidenceservice.New(evidenceStore, caseStore, cfg.AnalysisDepartments,
		evidenceservice.WithLogger(log),
		evidenceservice.WithAuditPublisher(publisher),
		evidenceservice.WithMetrics(evidencemetrics.New()),
	)

	admissionSvc := admissionservice.New(requestStore, identitySvc, txRunner,
		admissionservice.WithLogger(log),
		admissionservice.WithAuditPublisher(publisher),
		admissionservice.WithMetrics(admissionmetrics.New()),
	)

	var timelineRelay *relay.Relay
	if timelineOutbox != nil {
		var err error
		timelineRelay, err = relay.New(cfg.Kafka, timelineOutbox, log)
		if err != nil {
			return httptransport.Deps{}, nil, err
		}
	}

	return httptransport.Deps{
		Validator: tokens,
		Admission: admissionhandler.New(admissionSvc),
		Cases:     casehandler.New(caseSvc),
		Evidence:  evidencehandler.New(evidenceSvc),
		Identity:  identityhandler.New(identitySvc),
	}, timelineRelay, nil
}

// bootstrapAdmin seeds the first reviewer account from the environment so a
// fresh deployment has someone who can approve access requests.
func bootstrapAdmin(cfg config.Config, accounts identityservice.AccountStore, log *slog.Logger) error {
	if cfg.BootstrapAdminUsername == "" || cfg.BootstrapAdminSecret == "" {
		return nil
	}
	exists, err := accounts.UsernameExists(context.Background(), cfg.BootstrapAdminUsername)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	account, err := identitymodels.NewAccount(
		domain.AccountID(uuid.New()), cfg.BootstrapAdminUsername, domain.RoleAdmin, "", time.Now())
	if err != nil {
		return err
	}
	account.SecretHash, err = secrets.Hash(cfg.BootstrapAdminSecret)
	if err != nil {
		return err
	}
	if err := accounts.Create(context.Background(), account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil
		}
		return err
	}
	log.Info("bootstrapped admin account", "username", account.Username)
	return nil
}

// limiterOrNil keeps the typed-nil pointer out of the Limiter interface so the
// middleware's nil check works.
func limiterOrNil(l *ratelimit.FixedWindow) middleware.Limiter {
	if l == nil {
		return nil
	}
	return l
}
