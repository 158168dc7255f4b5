package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/api"
	"example.com/chizen/internal/auth"
	"example.com/chizen/internal/cache"
	"example.com/chizen/internal/coach"
	"example.com/chizen/internal/config"
	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/logging"
	"example.com/chizen/internal/narration"
	"example.com/chizen/internal/outbox"
	"example.com/chizen/internal/persistence/memory"
	"example.com/chizen/internal/persistence/postgres"
	httptransport "example.com/chizen/internal/transport/http"
)

// repositories is satisfied by both the Postgres and the in-memory store.
type repositories interface {
	domain.UserRepository
	domain.RoutineRepository
	domain.ChallengeRepository
	domain.NewsletterRepository
	domain.AdminRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repos repositories
		pool  *pgxpool.Pool
	)
	if cfg.PostgresURL != "" {
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.PostgresURL); err != nil {
				log.WithError(err).Fatal("apply migrations")
			}
		}
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer pool.Close()
		repos = postgres.NewStore(pool)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory store; data is lost on restart")
		repos = memory.NewStore()
	}

	var routineCache domain.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.Dial(ctx, cfg.RedisURL, "chizen:")
		if err != nil {
			log.WithError(err).Warn("redis unavailable, routine cache disabled")
		} else {
			defer rc.Close()
			routineCache = rc
		}
	}

	tokens, err := auth.NewTokens(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.AccessTokenTTL})
	if err != nil {
		log.WithError(err).Fatal("configure tokens")
	}

	voice, err := newNarration(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("configure narration")
	}

	generator := coach.NewClient(coach.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.GeneratorTimeout,
	}, log.WithField("component", "coach"))
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set, serving the built-in fallback routine")
	}

	locks := domain.NewUserLocks()
	withLog := domain.WithLogger(log)
	services := api.Services{
		Accounts: domain.NewAccountService(repos, auth.Bcrypt{}, tokens, cfg.DemoMode, withLog),
		Routines: domain.NewRoutineService(domain.RoutineDeps{
			Routines:  repos,
			Users:     repos,
			Generator: generator,
			Narrator:  voice,
			Cache:     routineCache,
			CacheTTL:  cfg.RoutineCacheTTL,
			Locks:     locks,
		}, withLog),
		Progress:   domain.NewProgressService(repos, repos, withLog),
		Challenges: domain.NewChallengeService(domain.DefaultCatalog(), repos, locks, withLog),
		Newsletter: domain.NewNewsletterService(repos, withLog),
		Admin:      domain.NewAdminService(repos, repos, repos, withLog),
		Voice:      voice,
	}
	if cfg.DemoMode {
		log.Warn("DEMO_MODE enabled, demo-* bearer tokens authenticate without a password")
	}

	var dispatcher *outbox.Dispatcher
	if cfg.EventsEnabled() {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, log)
		go dispatcher.Start(ctx)
	} else {
		log.Info("kafka not configured, outbox events stay in the database")
	}

	handler := api.NewHandler(services, tokens, api.Options{
		CORSOrigins:       cfg.CORSOrigins,
		GeneratePerMinute: cfg.GenerateRatePerMinute,
		MediaDir:          cfg.MediaDir,
	}, log.WithField("component", "api"))

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler.Routes())

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("addr", cfg.HTTPAddress).Info("chizen api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-shutdownCh
	log.Info("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
}

func newNarration(cfg config.Config, log logrus.FieldLogger) (*narration.Service, error) {
	store, err := narration.NewFileStore(cfg.MediaDir, strings.TrimSuffix(cfg.PublicBaseURL, "/")+"/media")
	if err != nil {
		return nil, err
	}
	var speaker narration.Speaker
	if cfg.ElevenLabsAPIKey != "" {
		speaker = narration.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, "", cfg.NarrationTimeout)
	} else {
		log.Warn("ELEVENLABS_API_KEY not set, narration disabled")
	}
	return narration.NewService(speaker, store, cfg.NarrationTimeout, log.WithField("component", "narration")), nil
}
