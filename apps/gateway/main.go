// Command gateway serves the REST API, the /ws push endpoint and the
// Prometheus metrics from one process.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/api"
	"github.com/mahaj/chatter-box/pkg/archive"
	"github.com/mahaj/chatter-box/pkg/auth"
	"github.com/mahaj/chatter-box/pkg/config"
	"github.com/mahaj/chatter-box/pkg/db"
	"github.com/mahaj/chatter-box/pkg/events"
	"github.com/mahaj/chatter-box/pkg/logger"
	"github.com/mahaj/chatter-box/pkg/media"
	"github.com/mahaj/chatter-box/pkg/metrics"
	"github.com/mahaj/chatter-box/pkg/presence"
	"github.com/mahaj/chatter-box/pkg/realtime"
	"github.com/mahaj/chatter-box/pkg/snowflake"
	"github.com/mahaj/chatter-box/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	database, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		lg.Fatal("open_database_failed", zap.Error(err))
	}
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		lg.Fatal("snowflake_init_failed", zap.Error(err))
	}
	users := store.NewUserRepository(database)
	rooms := store.NewRoomRepository(database)
	messages := store.NewMessageRepository(database, node)

	m := metrics.New()
	hubOpts := []realtime.Option{realtime.WithLogger(lg), realtime.WithMetrics(m)}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = presence.Connect(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			lg.Fatal("redis_connect_failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		hubOpts = append(hubOpts, realtime.WithMirror(presence.NewRedisMirror(rdb, presence.DefaultKey)))
		lg.Info("presence_mirror_enabled", zap.String("addr", cfg.RedisAddr))
	}
	hub := realtime.NewHub(hubOpts...)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, lg)
		lg.Info("kafka_publisher_enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	uploader, err := media.NewLocalUploader(cfg.UploadDir, cfg.PublicURL+"/uploads", cfg.MaxUploadBytes)
	if err != nil {
		lg.Fatal("upload_dir_failed", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	deps := api.Deps{
		Users:       users,
		Rooms:       rooms,
		Messages:    messages,
		Tokens:      tokens,
		Passwords:   auth.NewPasswordHasher(0),
		Notifier:    hub,
		Publisher:   publisher,
		Uploader:    uploader,
		Log:         lg,
		CORSOrigins: cfg.CORSOrigins,
	}

	var archiveSession *db.Session
	if cfg.ArchiveReads {
		archiveSession, err = db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
		if err != nil {
			lg.Fatal("scylla_connect_failed", zap.Strings("hosts", cfg.ScyllaHosts), zap.Error(err))
		}
		deps.Archive = archive.NewReader(archiveSession.Session)
		lg.Info("archive_reads_enabled", zap.String("keyspace", cfg.ScyllaKeyspace))
	}

	srv := api.NewServer(deps)
	router := srv.Router()
	router.Handle("/ws", realtime.NewHandler(hub, tokens, rooms, realtime.HandlerConfig{
		Rate:           cfg.WSRate,
		Burst:          cfg.WSBurst,
		AllowedOrigins: cfg.CORSOrigins,
	}, lg))
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	if cfg.StaticDir != "" {
		router.PathPrefix("/").Handler(spaHandler(cfg.StaticDir))
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Middleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(hubCtx); err != nil {
			lg.Error("hub_failed", zap.Error(err))
		}
	}()

	go func() {
		lg.Info("gateway_starting", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen_failed", zap.Error(err))
		}
	}()

	// Teardown order: HTTP, hub connections, then the backends they use.
	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"gateway": func(ctx context.Context) error {
			var errs []error
			errs = append(errs, httpServer.Shutdown(ctx))
			stopHub()
			select {
			case <-hubDone:
			case <-ctx.Done():
			}
			errs = append(errs, publisher.Close())
			if rdb != nil {
				errs = append(errs, rdb.Close())
			}
			if archiveSession != nil {
				archiveSession.Close()
			}
			errs = append(errs, store.Close(database))
			return errors.Join(errs...)
		},
	})

	code := <-wait
	lg.Info("gateway_stopped", zap.Int("exit_code", code))
	_ = lg.Sync()
	os.Exit(code)
}
