package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paycore/internal/config"
	"paycore/internal/handler"
	"paycore/internal/infrastructure/cache"
	"paycore/internal/infrastructure/database"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/infrastructure/mq"
	"paycore/internal/job"
	"paycore/internal/metrics"
	"paycore/internal/service"
	"paycore/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type backgroundJob interface {
	Start(ctx context.Context)
	Stop()
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	workerID := flag.Int64("worker-id", 1, "snowflake worker id, unique per instance")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)

	idgen.Init(*workerID)

	db := database.InitStorage(cfg)

	var redisClient *redis.Client
	if cfg.Lock.Backend == "redis" || cfg.Cache.Enabled || cfg.Business.Fraud.VelocityLimit > 0 {
		redisClient = cache.InitRedis(&cfg.Redis)
		defer redisClient.Close()
	}

	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	locker := newLocker(cfg, redisClient)
	events := service.NewOutboxPublisher(db, cfg.Kafka.Topic.AccountEvents, cfg.Kafka.Topic.PaymentEvents)

	ledgerOpts := []service.LedgerOption{service.WithLedgerMetrics(m)}
	if cfg.Cache.Enabled && redisClient != nil {
		ttl := time.Duration(cfg.Cache.AccountTTLSeconds) * time.Second
		ledgerOpts = append(ledgerOpts, service.WithAccountCache(cache.NewRedisAccountCache(redisClient, ttl)))
	}
	ledger := service.NewLedgerService(db, locker, events, ledgerOpts...)

	payments := service.NewPaymentService(
		db,
		ledger,
		locker,
		events,
		service.NewScheduleFeeCalculator(cfg.Business.Fees),
		service.NewThresholdComplianceGate(cfg.Business.Compliance),
		service.NewVelocityFraudGate(redisClient, cfg.Business.Fraud),
		service.PaymentPolicyFromConfig(cfg),
		service.WithPaymentMetrics(m),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := []backgroundJob{
		job.NewOutboxSender(db, producer, cfg, m),
		job.NewPaymentSweeper(payments, cfg),
		job.NewPaymentCompensateJob(payments, cfg),
		job.NewLimitResetJob(db, ledger, cfg),
		job.NewInterestAccrualJob(db, ledger, cfg),
	}
	for _, j := range jobs {
		go j.Start(ctx)
	}

	router := handler.SetupRouter(handler.NewHandler(ledger, payments, service.NewOutboxService(db)), registry, cfg.Server.Mode)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("paycore listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	for _, j := range jobs {
		j.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}

	log.Println("stopped")
}

func newLocker(cfg *config.Config, client *redis.Client) lock.Locker {
	if cfg.Lock.Backend != "redis" {
		log.Println("[Lock] using in-process locker")
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(
		client,
		time.Duration(cfg.Lock.TTLSeconds)*time.Second,
		time.Duration(cfg.Lock.RetryIntervalMs)*time.Millisecond,
		cfg.Lock.MaxRetries,
	)
}
