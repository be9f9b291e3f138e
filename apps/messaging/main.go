// Command messaging consumes the message stream from Kafka and archives it
// to ScyllaDB.
package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/archive"
	"github.com/mahaj/chatter-box/pkg/config"
	"github.com/mahaj/chatter-box/pkg/db"
	"github.com/mahaj/chatter-box/pkg/logger"
)

const groupID = "messaging-service-group"

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

	if len(cfg.KafkaBrokers) == 0 {
		lg.Fatal("kafka_brokers_required")
	}

	if err := archive.EnsureSchema(cfg.ScyllaHosts, cfg.ScyllaKeyspace); err != nil {
		lg.Fatal("ensure_schema_failed", zap.Error(err))
	}
	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		lg.Fatal("scylla_connect_failed", zap.Strings("hosts", cfg.ScyllaHosts), zap.Error(err))
	}

	consumer := archive.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, groupID, archive.NewArchiver(session.Session), lg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		lg.Info("consumer_starting",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
			zap.String("group", groupID),
		)
		if err := consumer.Run(ctx); err != nil {
			lg.Error("consumer_failed", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"consumer": func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			err := consumer.Close()
			session.Close()
			return err
		},
	})

	code := <-wait
	lg.Info("messaging_stopped", zap.Int("exit_code", code))
	_ = lg.Sync()
	os.Exit(code)
}
