// Package collector runs the receiving side: batches from the transport are
// unpacked, de-duplicated, buffered and pushed to the sinks.
package collector

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	lru "github.com/elastic/go-freelru"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"colmet/pkg/config"
	"colmet/pkg/counters"
	"colmet/pkg/exporting"
	"colmet/pkg/transport"
)

// closeTimeout bounds the final flush on shutdown.
const closeTimeout = 30 * time.Second

// recordKey identifies one sample. Transport redelivery yields the same key.
type recordKey struct {
	schema   string
	hostname string
	jobID    uint64
	ts       uint64
}

func hashKey(k recordKey) uint32 {
	b := make([]byte, 0, len(k.schema)+len(k.hostname)+42)
	b = append(b, k.schema...)
	b = append(b, 0)
	b = append(b, k.hostname...)
	b = append(b, 0)
	b = strconv.AppendUint(b, k.jobID, 10)
	b = append(b, 0)
	b = strconv.AppendUint(b, k.ts, 10)
	return uint32(xxh3.Hash(b))
}

// Stats counts what went through the collector.
type Stats struct {
	Messages   int
	Records    int
	Dropped    int // messages rejected while unpacking
	Duplicates int
	Stored     int // records accepted by at least one sink
	Flushes    int
}

// Collector owns the record buffer. Handle and Flush may be called from
// different goroutines.
type Collector struct {
	cfg   *config.CollectorConfig
	reg   *counters.Registry
	recv  transport.Receiver
	sinks []exporting.Sink

	mu       sync.Mutex
	seen     *lru.LRU[recordKey, struct{}]
	buf      []*counters.Unpacked
	pending  []transport.Message
	sessions map[string]string
	stats    Stats
}

// New builds a collector. reg must be sealed; it is only read.
func New(cfg *config.CollectorConfig, reg *counters.Registry, recv transport.Receiver, sinks []exporting.Sink) (*Collector, error) {
	c := &Collector{
		cfg:      cfg,
		reg:      reg,
		recv:     recv,
		sinks:    sinks,
		buf:      make([]*counters.Unpacked, 0, cfg.BufferSize),
		sessions: make(map[string]string),
	}
	if cfg.DedupeSize > 0 {
		seen, err := lru.New[recordKey, struct{}](uint32(cfg.DedupeSize), hashKey)
		if err != nil {
			return nil, err
		}
		c.seen = seen
	}
	return c, nil
}

// Handle unpacks msgs into the buffer. It reports whether the buffer has
// reached its flush size.
func (c *Collector) Handle(msgs []transport.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range msgs {
		c.stats.Messages++
		c.pending = append(c.pending, m)
		c.trackSession(m)

		recs, err := counters.UnpackBatch(c.reg, m.Payload)
		if err != nil {
			c.stats.Dropped++
			var notFound *counters.SchemaNotFoundError
			switch {
			case counters.IsIntegrity(err):
				log.Warnf("Dropping batch from %s: %v", m.Hostname, err)
			case errors.As(err, &notFound):
				log.Errorf("Dropping batch from %s, is the node running another version? %v", m.Hostname, err)
			default:
				log.Errorf("Dropping batch from %s: %v", m.Hostname, err)
			}
			continue
		}

		for _, r := range recs {
			c.stats.Records++
			if c.duplicate(r) {
				c.stats.Duplicates++
				continue
			}
			c.buf = append(c.buf, r)
		}
	}
	return len(c.buf) >= c.cfg.BufferSize
}

func (c *Collector) trackSession(m transport.Message) {
	if m.Session == "" {
		return
	}
	if prev, ok := c.sessions[m.Hostname]; !ok || prev != m.Session {
		log.Infof("Node %s started session %s", m.Hostname, m.Session)
		c.sessions[m.Hostname] = m.Session
	}
}

func (c *Collector) duplicate(r *counters.Unpacked) bool {
	if c.seen == nil {
		return false
	}
	k := recordKey{schema: r.Backend(), hostname: r.Hostname(), jobID: r.JobID(), ts: r.Timestamp()}
	if c.seen.Contains(k) {
		log.Debugf("Duplicate %s record for job %d from %s at %d", k.schema, k.jobID, k.hostname, k.ts)
		return true
	}
	c.seen.Add(k, struct{}{})
	return false
}

// Flush pushes the buffer to every sink, then commits the messages it came
// from. A failing sink is logged and does not hold the others back.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	if len(c.buf) > 0 {
		ok := 0
		for _, s := range c.sinks {
			if err := s.Push(ctx, c.buf); err != nil {
				log.Errorf("Sink %s failed to store %d records: %v", s.Name(), len(c.buf), err)
				continue
			}
			ok++
		}
		log.Debugf("Flushed %d records to %d of %d sinks", len(c.buf), ok, len(c.sinks))
		if ok > 0 {
			c.stats.Stored += len(c.buf)
		}
	}
	c.stats.Flushes++
	c.buf = c.buf[:0]

	msgs := c.pending
	c.pending = nil
	return c.recv.Commit(ctx, msgs)
}

// Stats returns a copy of the counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run receives until ctx ends or the transport closes, flushing on size and
// on every flush interval. The buffer is flushed once more before Run
// returns.
func (c *Collector) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.receiveLoop(gctx) })
	g.Go(func() error { return c.flushLoop(gctx) })
	err := g.Wait()
	if errors.Is(err, transport.ErrClosed) {
		err = nil
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if ferr := c.Flush(flushCtx); ferr != nil {
		log.Errorf("Final flush: %v", ferr)
	}
	st := c.Stats()
	log.Infof("Collector stopped: %d messages, %d records stored, %d duplicates, %d batches dropped",
		st.Messages, st.Stored, st.Duplicates, st.Dropped)
	return err
}

func (c *Collector) receiveLoop(ctx context.Context) error {
	for {
		msgs, err := c.recv.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return transport.ErrClosed
			}
			return err
		}
		if c.Handle(msgs) {
			if err := c.Flush(ctx); err != nil {
				log.Errorf("Commit failed: %v", err)
			}
		}
	}
}

func (c *Collector) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				log.Errorf("Commit failed: %v", err)
			}
		}
	}
}
