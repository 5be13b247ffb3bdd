// Command server runs the CRM ⇄ Telegram bridge: webhook ingestion, the job
// pipeline (inline or queue-backed), and the staff-facing HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/opsdesk/telegram-bridge/internal/config"
	httpapi "github.com/opsdesk/telegram-bridge/internal/http"
	"github.com/opsdesk/telegram-bridge/internal/jobs"
	"github.com/opsdesk/telegram-bridge/internal/observability"
	"github.com/opsdesk/telegram-bridge/internal/replies"
	"github.com/opsdesk/telegram-bridge/internal/repo"
	"github.com/opsdesk/telegram-bridge/internal/services"
	"github.com/opsdesk/telegram-bridge/internal/storage"
	"github.com/opsdesk/telegram-bridge/internal/sysutil"
	"github.com/opsdesk/telegram-bridge/internal/telegram"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments use the process environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	clients := telegram.NewFactory(
		cfg.Telegram.Transport,
		cfg.Telegram.APITimeout,
		cfg.Telegram.ClientTTL,
		cfg.Telegram.ClientCap,
	)
	replyStore := replies.NewStore(cfg.Telegram.ReplyTTL, 4096)

	var signer storage.URLSigner
	s3cfg := storage.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		PathStyle: cfg.S3.PathStyle,
	}
	if s3cfg.Enabled() {
		sg, err := storage.NewSigner(s3cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 signer setup failed")
		}
		signer = sg
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("attachment URL signing enabled")
	}

	inbound := &services.InboundService{
		DB:            db,
		Clients:       clients,
		Replies:       replyStore,
		BaseURL:       cfg.BaseURL,
		ArchiveChatID: cfg.ArchiveChatID,
		CallTimeout:   cfg.Telegram.APITimeout,
	}
	outbound := &services.OutboundService{
		DB:          db,
		Clients:     clients,
		Signer:      signer,
		PresignTTL:  cfg.S3.PresignTTL,
		CallTimeout: cfg.Telegram.APITimeout,
	}
	files := &services.FileService{DB: db}
	runner := &jobs.Runner{Inbound: inbound, Outbound: outbound, Files: files}

	// Queue-backed dispatch when a broker is configured, inline otherwise.
	var dispatcher jobs.Dispatcher
	if cfg.AMQP.URL != "" {
		d, err := jobs.NewAMQPDispatcher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp dispatcher setup failed")
		}
		defer d.Close()

		consumer, err := jobs.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, runner)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp consumer setup failed")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("job consumer stopped")
			}
		}()
		dispatcher = d
		log.Info().Str("queue", cfg.AMQP.Queue).Msg("queue-backed job dispatch enabled")
	} else {
		dispatcher = &jobs.InlineDispatcher{Runner: runner}
		log.Info().Msg("inline job dispatch enabled")
	}
	inbound.Dispatcher = dispatcher
	outbound.Dispatcher = dispatcher

	ingest := &services.IngestService{DB: db, Dispatcher: dispatcher}
	link := &services.LinkService{DB: db, TTL: cfg.Telegram.LinkCodeTTL}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Services{
		Ingest:  ingest,
		Compose: outbound,
		Link:    link,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)
}
