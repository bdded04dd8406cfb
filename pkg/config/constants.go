package config

import "time"

// Default configuration values.
const (
	DefaultSamplePeriod   = 5.0
	DefaultRegexJobID     = `_(\d+)$`
	DefaultRescanInterval = 30 * time.Second
	DefaultEmit           = EmitTotal
	DefaultTopic          = "colmet"
	DefaultGroup          = "colmet-collector"
	DefaultBufferSize     = 100
	DefaultFlushInterval  = 10 * time.Second
	DefaultDedupeSize     = 8192
	DefaultOutputDir      = "."
	DefaultFormat         = "jsonl"
	DefaultIndexPrefix    = "colmet_"
	DefaultKafkaTimeout   = 10 * time.Second
)

// Emission modes.
const (
	EmitTotal = "total"
	EmitDelta = "delta"
)
