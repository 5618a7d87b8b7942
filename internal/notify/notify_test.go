package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/score"
)

func TestBuildConsoleChannel(t *testing.T) {
	sinks, err := Build(config.Notifications{Channels: []string{"console"}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(sinks) != 1 {
		t.Fatalf("expected one sink, got %d", len(sinks))
	}
	if _, ok := sinks[0].(*ConsoleSink); !ok {
		t.Fatalf("expected console sink, got %T", sinks[0])
	}
}

func TestBuildRejectsUnknownChannel(t *testing.T) {
	if _, err := Build(config.Notifications{Channels: []string{"pager"}}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestBuildRejectsIncompleteKafkaConfig(t *testing.T) {
	cfg := config.Notifications{
		Channels: []string{"kafka"},
		Kafka:    config.Kafka{Brokers: []string{"localhost:9092"}},
	}
	if _, err := Build(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for kafka config without topic")
	}
}

func TestConsoleSinkRendersReport(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(zerolog.New(&buf))

	report := score.Report{
		Symbol: "BTCUSDT",
		Signal: score.Buy,
		Scores: score.Scores{Total: 65},
	}
	if err := sink.Publish(context.Background(), report); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"BTCUSDT", "BUY", "signal changed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output: %s", want, out)
		}
	}
}

func TestConsoleSinkWarnsOnDegradedReport(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(zerolog.New(&buf))

	report := score.Report{Symbol: "BTCUSDT", Err: "insufficient history"}
	if err := sink.Publish(context.Background(), report); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "analysis degraded") || !strings.Contains(out, "insufficient history") {
		t.Fatalf("expected degraded warning, got: %s", out)
	}
}
