package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/config"
	"example.com/chizen/internal/consumer"
	"example.com/chizen/internal/events"
	"example.com/chizen/internal/logging"
	"example.com/chizen/internal/notify"
	httptransport "example.com/chizen/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}
	if cfg.PostgresURL == "" || len(cfg.KafkaBrokers) == 0 {
		log.Fatal("consumer requires POSTGRES_URL and KAFKA_BROKERS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("connect to postgres")
	}
	defer pool.Close()

	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	if cfg.SendGridAPIKey != "" {
		dashboard := strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/dashboard"
		notifier = notify.NewSendGrid(cfg.SendGridAPIKey, cfg.FromEmail, dashboard, "", 10*time.Second)
	}

	router := consumer.NewRouter().
		On(events.TypeNewsletterSubscribed, consumer.NewWelcomeHandler(notifier, log.WithField("handler", "welcome"))).
		On(events.TypeAdminBroadcast, consumer.NewBroadcastHandler(log.WithField("handler", "broadcast")))
	handler := consumer.Chain(consumer.NewAuditHandler(pool), router)

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress)
	go func() {
		log.WithField("addr", cfg.MetricsAddress).Info("consumer metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server error")
		}
	}()

	topics := cfg.ConsumerTopics
	if len(topics) == 0 {
		topics = events.Topics()
	}

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range topics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		topicLog := log.WithFields(logrus.Fields{"topic": topic, "group": cfg.ConsumerGroupID})
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(topicLog))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			topicLog.Info("consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				topicLog.WithError(err).Error("consumer stopped")
			}
		}()
	}

	<-stop
	log.Info("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("metrics server shutdown")
	}

	wg.Wait()
}
