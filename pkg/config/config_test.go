package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIni(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "colmet.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseNode(t *testing.T, args ...string) (*NodeConfig, error) {
	t.Helper()
	cfg := NewNodeConfig()
	fs := flag.NewFlagSet("node", flag.ContinueOnError)
	finish := BindNodeFlags(fs, cfg)
	if err := Parse(fs, args, SectionNode, SectionKafka); err != nil {
		return cfg, err
	}
	return cfg, finish()
}

func TestNodeDefaults(t *testing.T) {
	cfg, err := parseNode(t)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.SamplePeriod)
	assert.Equal(t, 5*time.Second, cfg.Period())
	assert.Equal(t, `_(\d+)$`, cfg.RegexJobID)
	assert.Equal(t, EmitTotal, cfg.Emit)
	assert.True(t, cfg.EnableTaskstats)
	assert.True(t, cfg.EnableProcstats)
	assert.False(t, cfg.EnableNvidia)
	assert.False(t, cfg.HasStaticJob())
	assert.Equal(t, DefaultTopic, cfg.Kafka.Topic)
	assert.NotEmpty(t, cfg.Hostname)
}

func TestNodeFlags(t *testing.T) {
	cfg, err := parseNode(t,
		"-sample-period", "0.5",
		"-job-id", "42",
		"-cgroup", "/sys/fs/cgroup/cpuset/a",
		"-cgroup", "/sys/fs/cgroup/cpuset/b",
		"-pid", "100,101",
		"-tid", "7",
		"-emit", "DELTA",
		"-kafka-brokers", "k1:9092, k2:9092",
	)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Period())
	assert.Equal(t, uint64(42), cfg.JobID)
	assert.Equal(t, []string{"/sys/fs/cgroup/cpuset/a", "/sys/fs/cgroup/cpuset/b"}, cfg.CGroups)
	assert.Equal(t, []int{100, 101}, cfg.PIDs)
	assert.Equal(t, []int{7}, cfg.TIDs)
	assert.Equal(t, EmitDelta, cfg.Emit)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.BrokerList())
	assert.NoError(t, cfg.Kafka.Validate())
}

func TestNodeValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero period", []string{"-sample-period", "0"}},
		{"bad emit", []string{"-emit", "sometimes"}},
		{"static children need a job id", []string{"-pid", "1"}},
		{"missing cpuset root", []string{"-cpuset-rootpath", "/nonexistent/cpuset"}},
		{"regex without group", []string{"-cpuset-rootpath", os.TempDir(), "-regex-job-id", `\d+`}},
		{"bad pid", []string{"-pid", "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseNode(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("COLMET_SAMPLE_PERIOD", "2")
	t.Setenv("COLMET_CGROUP", "/a,/b")
	t.Setenv("COLMET_JOB_ID", "9")
	t.Setenv("COLMET_KAFKA_TOPIC", "metrics")

	cfg, err := parseNode(t, "-sample-period", "3")
	require.NoError(t, err)

	assert.Equal(t, 3.0, cfg.SamplePeriod, "flag wins over environment")
	assert.Equal(t, []string{"/a", "/b"}, cfg.CGroups)
	assert.Equal(t, uint64(9), cfg.JobID)
	assert.Equal(t, "metrics", cfg.Kafka.Topic)
}

func TestIniFile(t *testing.T) {
	path := writeIni(t, `
[node]
sample-period = 10
enable-rapl = true
emit = delta

[kafka]
brokers = broker:9092
topic = from-ini
sasl-user = alice
sasl-password = secret
`)
	t.Setenv("COLMET_KAFKA_TOPIC", "from-env")

	cfg, err := parseNode(t, "-config", path, "-emit", "total")
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.SamplePeriod)
	assert.True(t, cfg.EnableRAPL)
	assert.Equal(t, EmitTotal, cfg.Emit, "flag wins over ini")
	assert.Equal(t, "broker:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "from-env", cfg.Kafka.Topic, "environment wins over ini")
	assert.Equal(t, "alice", cfg.Kafka.SASLUser)
	assert.NoError(t, cfg.Kafka.Validate())
}

func TestIniMissingFile(t *testing.T) {
	_, err := parseNode(t, "-config", filepath.Join(t.TempDir(), "absent.ini"))
	assert.NoError(t, err)
}

func TestKafkaValidation(t *testing.T) {
	k := newKafkaConfig()
	assert.Error(t, k.Validate(), "no brokers")

	k.Brokers = "b:9092"
	assert.NoError(t, k.Validate())

	k.SASLUser = "alice"
	assert.Error(t, k.Validate(), "user without password")
}

func TestCollectorConfig(t *testing.T) {
	parse := func(args ...string) (*CollectorConfig, error) {
		cfg := NewCollectorConfig()
		fs := flag.NewFlagSet("collector", flag.ContinueOnError)
		finish := BindCollectorFlags(fs, cfg)
		if err := Parse(fs, args, SectionCollector, SectionSinks, SectionKafka); err != nil {
			return cfg, err
		}
		return cfg, finish()
	}

	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.FlushInterval)
	assert.Equal(t, []string{"stdout"}, cfg.SinkList())

	dir := t.TempDir()
	path := writeIni(t, "[collector]\nbuffer-size = 500\n\n[sinks]\nsinks = file, stdout\nformat = PARQUET\noutput-dir = "+dir+"\n")
	cfg, err = parse("-config", path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.BufferSize)
	assert.Equal(t, []string{"file", "stdout"}, cfg.SinkList())
	assert.Equal(t, "parquet", cfg.Sink.Format)
	assert.Equal(t, filepath.Join(dir, "taskstats_default-job7.parquet"),
		cfg.Sink.GenerateOutputPath("taskstats_default", 7, ".parquet"))

	for _, args := range [][]string{
		{"-buffer-size", "0"},
		{"-sinks", "hdf5"},
		{"-sinks", "postgres"},
		{"-sinks", "elasticsearch"},
		{"-sinks", "file", "-format", "xml"},
	} {
		_, err := parse(args...)
		assert.Error(t, err, "%v", args)
	}
}
