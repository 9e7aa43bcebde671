package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/mailworker/internal/api"
	"github.com/shaharia-lab/mailworker/internal/build"
	"github.com/shaharia-lab/mailworker/internal/config"
	"github.com/shaharia-lab/mailworker/internal/eventbus"
	"github.com/shaharia-lab/mailworker/internal/logger"
	"github.com/shaharia-lab/mailworker/internal/messaging"
	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/notification"
	"github.com/shaharia-lab/mailworker/internal/provider"
	"github.com/shaharia-lab/mailworker/internal/scheduler"
	"github.com/shaharia-lab/mailworker/internal/server"
	"github.com/shaharia-lab/mailworker/internal/service"
	"github.com/shaharia-lab/mailworker/internal/storage"
	"github.com/shaharia-lab/mailworker/internal/telemetry"
)

const (
	serviceName       = "mailworker"
	workerStopTimeout = 30 * time.Second
	// One bus worker keeps a notification's log rows in publish order.
	eventBusWorkers = 1
)

// NewWorkerCmd returns the "worker" subcommand that consumes and delivers
// email requests until interrupted.
func NewWorkerCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		httpPort      int
		emailProvider string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume email requests and deliver them",
		Long: `Start the email worker. It reads send requests from the configured broker,
delivers them through the configured email provider and publishes status
updates. Health, metrics and the delivery log are served over HTTP unless
the port is 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("http-port") {
				cfg.HTTPPort = httpPort
			}
			if cmd.Flags().Changed("provider") {
				cfg.EmailProvider = emailProvider
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			printBanner(cmd.OutOrStdout(), cfg)
			return runWorker(cfg)
		},
	}

	cmd.Flags().IntVar(&httpPort, "http-port", cfg.HTTPPort, "HTTP port for health, metrics and API; 0 disables (overrides HTTP_PORT)")
	cmd.Flags().StringVar(&emailProvider, "provider", cfg.EmailProvider, "email provider: console, smtp or ses (overrides EMAIL_PROVIDER)")

	return cmd
}

func runWorker(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, logCloser, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logCloser.Close()

	log.Info("mailworker starting",
		slog.String("messaging_provider", cfg.MessagingProvider),
		slog.String("email_provider", cfg.EmailProvider),
		slog.String("status_publisher", cfg.StatusPublisher),
		slog.Int("prefetch", cfg.Prefetch),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	tp, shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       true,
		ServiceName:    serviceName,
		ServiceVersion: build.Version,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("flushing traces failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	db, err := storage.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	deliveries := storage.NewSQLiteDeliveryStore(db)

	bus := eventbus.New(eventBusWorkers, log)
	defer bus.Close()
	bus.Subscribe(service.NewEventRecorder(deliveries, log).Listen)
	m.RegisterEventsDropped(reg, bus.Dropped)

	transport, err := provider.New(cfg.EmailProvider, cfg.ProviderConfig(), log)
	if err != nil {
		return fmt.Errorf("creating email provider: %w", err)
	}

	checks := map[string]server.HealthCheck{"database": db.PingContext}

	var redisClient *redis.Client
	if cfg.MessagingProvider == config.MessagingRedis {
		redisClient = redis.NewClient(cfg.RedisOptions())
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	status := newStatusPublisher(cfg, redisClient, log, m)
	if c, ok := status.(io.Closer); ok {
		defer c.Close()
	}
	reporter := service.NewRetryingReporter(status, cfg.StatusReportAttempts, cfg.StatusReportBackoff, log, m)

	opts := []service.HandlerOption{
		service.WithEventPublisher(bus),
		service.WithMetrics(m),
		service.WithTracerProvider(tp),
	}
	var memorySeen *storage.MemoryIdempotencyStore
	if cfg.IdempotencyEnabled {
		if redisClient != nil {
			opts = append(opts, service.WithIdempotency(storage.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyTTL)))
		} else {
			memorySeen = storage.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
			opts = append(opts, service.WithIdempotency(memorySeen))
		}
	}

	handler := service.WithValidation[service.ProcessEmailCommand, struct{}](
		service.NewProcessEmailHandler(transport, reporter, log, opts...),
		service.NewProcessEmailValidator(),
	)
	dispatcher := messaging.NewDispatcher(handler, cfg.MessagingProvider, log, m)

	var consumer messaging.Consumer
	if redisClient != nil {
		consumer = messaging.NewRedisConsumer(redisClient, cfg.RedisConsumerConfig(), dispatcher, log, m)
	} else {
		consumer = messaging.NewKafkaConsumer(cfg.KafkaConfig(), dispatcher, log, m)
	}

	sched, err := scheduler.New(scheduler.Config{Logger: log})
	if err != nil {
		return err
	}
	if err := sched.Schedule(scheduler.PruneDeliveryLog(deliveries, cfg.DeliveryLogRetention, log)); err != nil {
		return err
	}
	if memorySeen != nil {
		if err := sched.Schedule(scheduler.SweepIdempotency(memorySeen, log)); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn("stopping scheduler failed", "error", err)
		}
	}()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	// A failing component cancels ctx so the others shut down too.
	run := func(name string, fn func(context.Context) error) {
		wg.Go(func() {
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		})
	}

	run("worker", messaging.NewWorker(consumer, log, workerStopTimeout).Run)
	if cfg.HTTPPort > 0 {
		srv := server.New(api.New(deliveries, sched, log), reg, checks, cfg.HTTPPort, log)
		run("http server", srv.Run)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		log.Error("mailworker exited with error", "error", err)
		return err
	}
	log.Info("mailworker stopped")
	return nil
}

// newStatusPublisher picks where status updates go. A Redis publisher shares
// the consumer's client.
func newStatusPublisher(
	cfg *config.AppConfig,
	client redis.UniversalClient,
	log *slog.Logger,
	m *metrics.Metrics,
) notification.StatusReporter {
	switch {
	case cfg.StatusPublisher == config.StatusPublisherConsole:
		return messaging.NewConsoleStatusPublisher(log)
	case cfg.MessagingProvider == config.MessagingKafka:
		return messaging.NewKafkaStatusPublisher(cfg.KafkaConfig(), log, m)
	default:
		return messaging.NewRedisStatusPublisherWithClient(client, cfg.Redis.StatusStream, log, m)
	}
}

// printBanner writes the startup summary to w. Structured logs go to
// stderr or the log file.
func printBanner(w io.Writer, cfg *config.AppConfig) {
	fmt.Fprintf(w, "mailworker %s\n", build.Version)
	switch cfg.MessagingProvider {
	case config.MessagingKafka:
		fmt.Fprintf(w, "Consuming: kafka %v topic %s\n", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	default:
		fmt.Fprintf(w, "Consuming: redis %s stream %s\n", cfg.Redis.Addr, cfg.Redis.Stream)
	}
	fmt.Fprintf(w, "Provider:  %s\n", cfg.EmailProvider)
	if cfg.HTTPPort > 0 {
		fmt.Fprintf(w, "HTTP:      http://localhost:%d\n", cfg.HTTPPort)
	}
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "Logs:      %s\n", cfg.LogFile)
	}
	fmt.Fprintln(w)
}
