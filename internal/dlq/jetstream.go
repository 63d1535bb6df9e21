package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "INGEST_DLQ"
	subjectPrefix = "ingest.dlq."
)

// JetStreamQueue writes failed batches to NATS JetStream so multiple ingest
// instances share a single replayable dead letter queue.
type JetStreamQueue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  jetstream.Stream
	written uint64
}

// NewJetStreamQueue connects to NATS and ensures the DLQ stream exists.
func NewJetStreamQueue(ctx context.Context, natsURL string) (*JetStreamQueue, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
		Storage:  jetstream.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &JetStreamQueue{nc: nc, js: js, stream: stream}, nil
}

// Write publishes a failed batch under ingest.dlq.<tenant>.
func (q *JetStreamQueue) Write(ctx context.Context, batch *FailedBatch) error {
	if q == nil {
		return nil
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := subjectPrefix + batch.TenantID
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	slog.Info("Published failed batch to DLQ",
		slog.String("tenant_id", batch.TenantID),
		slog.String("upload_id", batch.UploadID),
	)
	return nil
}

// Written returns the number of entries published by this instance.
func (q *JetStreamQueue) Written() uint64 {
	return atomic.LoadUint64(&q.written)
}

func (q *JetStreamQueue) Close() error {
	if q.nc != nil {
		q.nc.Close()
	}
	return nil
}
