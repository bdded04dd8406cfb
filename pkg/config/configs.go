// Package config holds the node and collector configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

// KafkaConfig is shared by the node (producer) and the collector (consumer).
type KafkaConfig struct {
	Brokers      string
	Topic        string
	ClientID     string
	Group        string
	SASLUser     string
	SASLPassword string
	TLS          bool
	CAFile       string
	Timeout      time.Duration
}

// BrokerList splits the comma separated broker list.
func (k *KafkaConfig) BrokerList() []string {
	return splitList(k.Brokers)
}

func (k *KafkaConfig) Validate() error {
	if len(k.BrokerList()) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	if k.Topic == "" {
		return fmt.Errorf("kafka topic must not be empty")
	}
	if (k.SASLUser == "") != (k.SASLPassword == "") {
		return fmt.Errorf("kafka SASL needs both user and password")
	}
	return nil
}

// NodeConfig configures the sampling side.
type NodeConfig struct {
	SamplePeriod float64
	Hostname     string

	// Static job
	JobID   uint64
	CGroups []string
	PIDs    []int
	TIDs    []int

	// Dynamic jobs
	CpusetRoot     string
	RegexJobID     string
	RescanInterval time.Duration

	EnableTaskstats   bool
	EnableJobproc     bool
	EnableProcstats   bool
	EnableTemperature bool
	EnableRAPL        bool
	EnableNvidia      bool

	Emit     string
	ProcRoot string
	SysRoot  string

	Kafka      KafkaConfig
	Verbose    bool
	ConfigFile string
}

// NewNodeConfig returns a NodeConfig with default values.
func NewNodeConfig() *NodeConfig {
	return &NodeConfig{
		SamplePeriod:    DefaultSamplePeriod,
		Hostname:        Hostname(),
		RegexJobID:      DefaultRegexJobID,
		RescanInterval:  DefaultRescanInterval,
		EnableTaskstats: true,
		EnableProcstats: true,
		Emit:            DefaultEmit,
		ProcRoot:        "/proc",
		SysRoot:         "/sys",
		Kafka:           newKafkaConfig(),
	}
}

// Period returns the sample period as a duration.
func (c *NodeConfig) Period() time.Duration {
	return time.Duration(c.SamplePeriod * float64(time.Second))
}

// HasStaticJob reports whether any static child was given.
func (c *NodeConfig) HasStaticJob() bool {
	return len(c.CGroups)+len(c.PIDs)+len(c.TIDs) > 0
}

// JobIDPattern compiles RegexJobID.
func (c *NodeConfig) JobIDPattern() (*regexp.Regexp, error) {
	re, err := regexp.Compile(c.RegexJobID)
	if err != nil {
		return nil, fmt.Errorf("invalid regex-job-id %q: %w", c.RegexJobID, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("regex-job-id %q needs a capture group for the job id", c.RegexJobID)
	}
	return re, nil
}

// Validate checks the configuration for errors. The transport is checked by
// the caller since snapshots do not need one.
func (c *NodeConfig) Validate() error {
	if c.SamplePeriod <= 0 {
		return fmt.Errorf("sample-period must be positive, got %v", c.SamplePeriod)
	}
	if !slices.Contains(ValidEmitModes(), c.Emit) {
		return fmt.Errorf("invalid emit mode: %s (valid: %s)", c.Emit, strings.Join(ValidEmitModes(), ", "))
	}
	if c.HasStaticJob() && c.JobID == 0 {
		return fmt.Errorf("job id 0 is reserved for node-level stats")
	}
	if c.CpusetRoot != "" {
		if _, err := c.JobIDPattern(); err != nil {
			return err
		}
		if info, err := os.Stat(c.CpusetRoot); err != nil {
			return fmt.Errorf("cannot access cpuset root: %w", err)
		} else if !info.IsDir() {
			return fmt.Errorf("cpuset root is not a directory: %s", c.CpusetRoot)
		}
	}
	if c.RescanInterval < 0 {
		return fmt.Errorf("rescan-interval cannot be negative, got %v", c.RescanInterval)
	}
	return nil
}

// SinkConfig configures the collector's storage sinks.
type SinkConfig struct {
	OutputDir     string
	Format        string
	PgURI         string
	ESURL         string
	ESIndexPrefix string
}

// CollectorConfig configures the receiving side.
type CollectorConfig struct {
	BufferSize    int
	FlushInterval time.Duration
	Sinks         string
	DedupeSize    uint
	Sink          SinkConfig

	Kafka      KafkaConfig
	Verbose    bool
	ConfigFile string
}

// NewCollectorConfig returns a CollectorConfig with default values.
func NewCollectorConfig() *CollectorConfig {
	return &CollectorConfig{
		BufferSize:    DefaultBufferSize,
		FlushInterval: DefaultFlushInterval,
		Sinks:         "stdout",
		DedupeSize:    DefaultDedupeSize,
		Sink: SinkConfig{
			OutputDir:     DefaultOutputDir,
			Format:        DefaultFormat,
			ESIndexPrefix: DefaultIndexPrefix,
		},
		Kafka: newKafkaConfig(),
	}
}

// SinkList splits the comma separated sink names.
func (c *CollectorConfig) SinkList() []string {
	return splitList(c.Sinks)
}

// Validate checks the configuration for errors.
func (c *CollectorConfig) Validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer-size must be at least 1, got %d", c.BufferSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush-interval must be positive, got %v", c.FlushInterval)
	}
	sinks := c.SinkList()
	if len(sinks) == 0 {
		return fmt.Errorf("no sinks configured")
	}
	for _, s := range sinks {
		if !slices.Contains(ValidSinks(), s) {
			return fmt.Errorf("invalid sink: %s (valid: %s)", s, strings.Join(ValidSinks(), ", "))
		}
		switch s {
		case "file":
			if !slices.Contains(ValidOutputFormats(), c.Sink.Format) {
				return fmt.Errorf("invalid output format: %s (valid: %s)", c.Sink.Format, strings.Join(ValidOutputFormats(), ", "))
			}
			if info, err := os.Stat(c.Sink.OutputDir); err == nil && !info.IsDir() {
				return fmt.Errorf("output path is not a directory: %s", c.Sink.OutputDir)
			}
		case "postgres":
			if c.Sink.PgURI == "" {
				return fmt.Errorf("postgres sink needs -pg-uri")
			}
		case "elasticsearch":
			if c.Sink.ESURL == "" {
				return fmt.Errorf("elasticsearch sink needs -es-url")
			}
		}
	}
	return nil
}

// ValidEmitModes returns the supported emission modes.
func ValidEmitModes() []string {
	return []string{EmitTotal, EmitDelta}
}

// ValidSinks returns the supported sink names.
func ValidSinks() []string {
	return []string{"stdout", "file", "postgres", "elasticsearch"}
}

// ValidOutputFormats returns the supported file formats.
func ValidOutputFormats() []string {
	return []string{"parquet", "jsonl", "csv", "tsv"}
}

// GenerateOutputPath names the file holding one schema's records for one job.
func (s *SinkConfig) GenerateOutputPath(schema string, jobID uint64, ext string) string {
	return filepath.Join(s.OutputDir, fmt.Sprintf("%s-job%d%s", schema, jobID, ext))
}

// Hostname returns the short host name, "unknown" when unavailable.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	if i := strings.IndexByte(h, '.'); i > 0 {
		h = h[:i]
	}
	return h
}

func newKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Topic:    DefaultTopic,
		ClientID: "colmet",
		Group:    DefaultGroup,
		Timeout:  DefaultKafkaTimeout,
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
