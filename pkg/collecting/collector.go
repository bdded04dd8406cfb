package collecting

import (
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
)

// Level says what a data source samples.
type Level int

const (
	// TaskLevel sources are fetched once per task id each tick.
	TaskLevel Level = iota
	// NodeLevel sources are fetched once per tick for the whole node.
	NodeLevel
)

func (l Level) String() string {
	if l == NodeLevel {
		return "node"
	}
	return "task"
}

// Handle identifies the entity a Fetch is for: a task id for TaskLevel
// sources, NodeHandle for NodeLevel ones.
type Handle int

const NodeHandle Handle = 0

// DataSource produces absolute counter values for one schema.
type DataSource interface {
	Name() string
	Schema() *counters.Schema
	Level() Level
	// Fetch returns a fresh absolute record, or nil when the entity cannot
	// be read this tick (task exited, device gone).
	Fetch(h Handle) *counters.Unpacked
	Close() error
}

// set stores v, logging what the schema refuses.
func set(src string, r *counters.Unpacked, name string, v any) {
	if err := r.Set(name, v); err != nil {
		log.Debugf("%s: %s: %v", src, name, err)
	}
}
