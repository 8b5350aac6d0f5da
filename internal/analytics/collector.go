package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PippiShao/IMDB/pkg/kafka"
)

// Publisher is the part of kafka.Producer the collector uses.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers query events and publishes them in batches, flushing when
// a batch fills or the flush interval passes. Record drops events when the
// buffer is full.
type Collector struct {
	publisher     Publisher
	eventCh       chan QueryEvent
	batchSize     int
	flushInterval time.Duration
	onDrop        func()
	logger        *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type CollectorOption func(*Collector)

func WithBatchSize(n int) CollectorOption {
	return func(c *Collector) { c.batchSize = n }
}

func WithFlushInterval(d time.Duration) CollectorOption {
	return func(c *Collector) { c.flushInterval = d }
}

// WithDropHook is called once per dropped event.
func WithDropHook(fn func()) CollectorOption {
	return func(c *Collector) { c.onDrop = fn }
}

func NewCollector(publisher Publisher, bufferSize int, opts ...CollectorOption) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	c := &Collector{
		publisher:     publisher,
		eventCh:       make(chan QueryEvent, bufferSize),
		batchSize:     100,
		flushInterval: time.Second,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.batchSize <= 0 {
		c.batchSize = 1
	}
	return c
}

// Start launches the publish loop. It stops when the collector is closed or
// ctx is cancelled, flushing what it holds either way.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish query events", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	final := func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					flush(flushCtx)
					return
				}
				batch = append(batch, toKafka(event))
			default:
				flush(flushCtx)
				return
			}
		}
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				final()
				return
			}
			batch = append(batch, toKafka(event))
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			final()
			return
		}
	}
}

func (c *Collector) Record(event QueryEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		if c.onDrop != nil {
			c.onDrop()
		}
		c.logger.Warn("query event dropped (buffer full)", "conn_id", event.ConnID)
	}
}

// Close stops accepting events and waits for the final flush. Start must
// have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func toKafka(event QueryEvent) kafka.Event {
	return kafka.Event{Key: event.ConnID, Value: event}
}
