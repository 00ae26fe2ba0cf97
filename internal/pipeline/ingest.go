package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
)

// BatchExtractor reads up to batchSize telemetry messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.TelemetryMessage, error)
}

// Transformer converts a telemetry message into a reading.
type Transformer interface {
	Transform(ctx context.Context, msg domain.TelemetryMessage) (domain.Reading, error)
}

// BatchLoader persists a batch of readings and reports how many were new.
type BatchLoader interface {
	InsertReadings(ctx context.Context, readings []domain.Reading) (int, error)
}

// Ingest orchestrates the telemetry consume-parse-store loop.
type Ingest struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// NewIngest creates an Ingest with the given stages and observability.
func NewIngest(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Ingest {
	return &Ingest{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the loop has stored at least one batch of
// readings, or an error describing why the service is not yet ready.
func (p *Ingest) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("ingest has not stored any readings yet")
	}
	return nil
}

// Run executes the batch ingest loop until the context is cancelled.
func (p *Ingest) Run(ctx context.Context) error {
	p.logger.Info("ingest started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Inc()
	defer p.metrics.PipelineRunning.Dec()

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during Kafka outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingest stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one consume-parse-store cycle. Returns false if the loop
// should stop.
func (p *Ingest) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.IngestBatchSize.Observe(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	stored, ok := p.transformAndLoad(ctx, batch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if stored > 0 {
		p.metrics.IngestBatchDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad parses each message in the batch, stores the successes,
// and commits offsets. Returns the number of successfully stored readings and
// false if the loop should stop.
func (p *Ingest) transformAndLoad(ctx context.Context, batch []domain.TelemetryMessage, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	readings := make([]domain.Reading, 0, len(batch))
	parsed := make([]domain.TelemetryMessage, 0, len(batch))

	for _, msg := range batch {
		reading, err := p.transformer.Transform(ctx, msg)
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			p.metrics.TelemetryErrors.Inc()
			p.commitOffset(ctx, msg)
			continue
		}
		readings = append(readings, reading)
		parsed = append(parsed, msg)
	}

	if len(readings) == 0 {
		return 0, true
	}

	inserted, err := p.loader.InsertReadings(ctx, readings)
	if err != nil {
		p.logger.Error("insert readings failed", "error", err, "batch_size", len(readings))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	// inserted counts new rows only; replayed messages dedupe in the store.
	p.metrics.ReadingsIngested.Add(float64(inserted))

	for _, msg := range parsed {
		p.commitOffset(ctx, msg)
	}

	return len(readings), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the loop should stop.
func (p *Ingest) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Ingest) commitOffset(ctx context.Context, msg domain.TelemetryMessage) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
