// Package exporting stores collected records: file formats that can be
// written and read back, and the sinks the collector pushes to.
package exporting

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/config"
	"colmet/pkg/counters"
)

// Sink is a storage destination. Push must not retain recs.
type Sink interface {
	Name() string
	Push(ctx context.Context, recs []*counters.Unpacked) error
	Close() error
}

// NewSinks opens the sinks listed in cfg. On error the sinks opened so far
// are closed.
func NewSinks(ctx context.Context, cfg *config.CollectorConfig) ([]Sink, error) {
	var sinks []Sink
	for _, name := range cfg.SinkList() {
		s, err := newSink(ctx, name, &cfg.Sink)
		if err != nil {
			CloseAll(sinks)
			return nil, fmt.Errorf("sink %s: %w", name, err)
		}
		log.Infof("Sink %s ready", s.Name())
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func newSink(ctx context.Context, name string, cfg *config.SinkConfig) (Sink, error) {
	switch name {
	case "stdout":
		return NewStdoutSink(os.Stdout), nil
	case "file":
		return NewFileSink(cfg)
	case "postgres":
		return NewPostgresSink(ctx, cfg.PgURI)
	case "elasticsearch":
		return NewElasticSink(cfg.ESURL, cfg.ESIndexPrefix)
	}
	return nil, fmt.Errorf("unknown sink")
}

// CloseAll closes every sink, logging failures.
func CloseAll(sinks []Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Errorf("Closing sink %s: %v", s.Name(), err)
		}
	}
}
