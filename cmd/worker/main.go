// Worker consumes audit events and alerts from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, AUDIT_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"trustcore/internal/config"
	"trustcore/internal/logging"
	"trustcore/internal/telemetry/loki"
	"trustcore/internal/telemetry/producer"
)

const pushTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal().Msg("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal().Msg("worker: LOKI_URL is required")
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: loki client")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.AuditKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("topic", cfg.AuditKafkaTopic).Str("group", cfg.KafkaGroupID).Str("loki", cfg.LokiURL).
		Msg("worker: consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("worker: stopped")
				return
			}
			log.Warn().Err(err).Msg("worker: kafka read error")
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := client.PushRecordJSON(pushCtx, kindOf(msg), msg.Value); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("worker: loki push failed")
		}
		cancel()
	}
}

// kindOf reads the record kind header set by the producer. Records without one
// are treated as events.
func kindOf(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == producer.HeaderKind {
			return string(h.Value)
		}
	}
	return producer.KindEvent
}
