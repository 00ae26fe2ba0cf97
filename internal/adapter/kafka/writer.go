package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/comfortsense/comfort-analytics/internal/config"
	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// Writer produces building reports to a Kafka topic.
// It implements pipeline.ReportPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReports serializes a run's building reports and publishes them
// to the report topic in a single WriteMessages call.
func (w *Writer) PublishReports(ctx context.Context, report domain.PortfolioReport) error {
	if len(report.Buildings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Buildings))
	for i := range report.Buildings {
		msg, err := serializeReport(report.Buildings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write report messages: %w", err)
	}
	w.logger.Debug("published building reports", "run", report.RunID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeReport marshals a BuildingReport into a Kafka message.
// Keying by building ID keeps each building's reports ordered within
// a partition.
func serializeReport(report domain.BuildingReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize building report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.BuildingID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "computed_at", Value: []byte(report.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
