package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/db"
	"github.com/danielhkuo/tallyup/event"
	"github.com/danielhkuo/tallyup/mailer"
	"github.com/danielhkuo/tallyup/metrics"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/router"
	"github.com/danielhkuo/tallyup/store"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	// Verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	database := client.Database(cfg.MongoDatabase)

	// Create indexes
	if err := db.EnsureIndexes(ctx, database); err != nil {
		slog.Error("index creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database indexes ready")

	st := store.NewMongoStore(database)

	// Rate limiter: Redis when configured, process-local otherwise
	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		rl, err := middleware.NewRedisLimiter(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rl.Close()
		limiter = rl
	} else {
		slog.Warn("no redis configured, using in-process rate limiter")
		limiter = middleware.NewMemoryLimiter()
	}

	// Vote event stream: Kafka when configured
	var publisher event.VotePublisher = event.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	} else {
		slog.Warn("no kafka brokers configured, vote events disabled")
	}

	// Verification and invite mail: SMTP when configured
	var mail mailer.Sender
	if cfg.SMTPAddr != "" {
		mail = &mailer.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom}
	} else {
		slog.Warn("no smtp configured, logging outbound mail")
		mail = mailer.LogSender{}
	}

	// Create router
	mux := router.NewRouter(router.Deps{
		Store:     st,
		Config:    cfg,
		Limiter:   limiter,
		Publisher: publisher,
		Metrics:   metrics.NewVoteMetrics(prometheus.DefaultRegisterer, "tallyup"),
		Mailer:    mail,
	})

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
