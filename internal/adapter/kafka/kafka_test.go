package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

func TestMapMessage(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("bldg1/zat_1"),
		Value:     []byte(`{"point":"http://buildsys.org/ontologies/bldg1#zat_1","ts":"2016-01-04T09:15:00Z","value":71.5}`),
		Topic:     "building-telemetry",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "site", Value: []byte("bldg1")},
		},
	}

	raw := mapMessage(msg)

	assert.Equal(t, []byte("bldg1/zat_1"), raw.Key)
	assert.JSONEq(t, string(msg.Value), string(raw.Value))
	assert.Equal(t, "building-telemetry", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "bldg1", raw.Headers["site"])
}

func TestSerializeReport(t *testing.T) {
	computed := time.Date(2016, 2, 1, 3, 0, 0, 0, time.UTC)
	report := domain.BuildingReport{
		RunID:        "run-1",
		BuildingID:   "bldg1",
		BuildingName: "Soda Hall",
		Indices: domain.Indices{
			RangeOutlier: 0.12,
			DegreeHours:  42.5,
		},
		PointCount: 3,
		PointsUsed: 3,
		ComputedAt: computed,
	}

	msg, err := serializeReport(report)
	require.NoError(t, err)

	assert.Equal(t, []byte("bldg1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"range_outlier":0.12`)
	assert.Contains(t, string(msg.Value), `"degree_hours":42.5`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "computed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(computed.Format(time.RFC3339)), msg.Headers[1].Value)
}
