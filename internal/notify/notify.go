// Package notify fans analysis reports out to the configured channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/score"
)

// Sink delivers one analysis report to a channel.
type Sink interface {
	Publish(ctx context.Context, report score.Report) error
	Close() error
}

// Build constructs the sinks named in the notification config. An unknown
// channel name or incomplete kafka config fails the whole build.
func Build(cfg config.Notifications, log zerolog.Logger) ([]Sink, error) {
	var sinks []Sink
	for _, channel := range cfg.Channels {
		switch channel {
		case "console":
			sinks = append(sinks, &ConsoleSink{log: log})
		case "kafka":
			if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
				return nil, fmt.Errorf("kafka channel requires brokers and topic")
			}
			sinks = append(sinks, NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", channel)
		}
	}
	return sinks, nil
}

// ConsoleSink renders reports through the structured logger.
type ConsoleSink struct {
	log zerolog.Logger
}

func NewConsoleSink(log zerolog.Logger) *ConsoleSink {
	return &ConsoleSink{log: log}
}

func (s *ConsoleSink) Publish(_ context.Context, report score.Report) error {
	if report.Degraded() {
		s.log.Warn().
			Str("symbol", report.Symbol).
			Time("time", report.Time).
			Str("reason", report.Err).
			Msg("analysis degraded")
		return nil
	}
	s.log.Info().
		Str("symbol", report.Symbol).
		Time("time", report.Time).
		Float64("price", report.Price.Current).
		Float64("score", report.Scores.Total).
		Str("signal", string(report.Signal)).
		Str("risk", string(report.RiskLevel)).
		Str("action", report.Recommendation.Action).
		Msg("signal changed")
	return nil
}

func (s *ConsoleSink) Close() error { return nil }

// KafkaSink publishes reports as JSON messages keyed by symbol, so one
// symbol's reports stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (s *KafkaSink) Publish(ctx context.Context, report score.Report) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.Symbol),
		Value: value,
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
