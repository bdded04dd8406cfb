package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lars-t-hansen/ini"
	"github.com/peterbourgon/ff/v3"
)

// EnvVarPrefix prefixes the environment twin of every flag:
// -sample-period is also read from COLMET_SAMPLE_PERIOD.
const EnvVarPrefix = "COLMET"

// Sections of the ini file. Keys under [kafka] name the kafka-* flags
// without their prefix; keys in the other sections name flags directly.
const (
	SectionNode      = "node"
	SectionCollector = "collector"
	SectionSinks     = "sinks"
	SectionKafka     = "kafka"
	kafkaFlagPrefix  = "kafka-"
)

// BindKafkaFlags registers the kafka-* flags.
func BindKafkaFlags(fs *flag.FlagSet, cfg *KafkaConfig) {
	fs.StringVar(&cfg.Brokers, "kafka-brokers", cfg.Brokers, "Comma separated Kafka broker addresses")
	fs.StringVar(&cfg.Topic, "kafka-topic", cfg.Topic, "Kafka topic")
	fs.StringVar(&cfg.ClientID, "kafka-client-id", cfg.ClientID, "Kafka client id")
	fs.StringVar(&cfg.Group, "kafka-group", cfg.Group, "Kafka consumer group (collector)")
	fs.StringVar(&cfg.SASLUser, "kafka-sasl-user", cfg.SASLUser, "SASL/PLAIN user")
	fs.StringVar(&cfg.SASLPassword, "kafka-sasl-password", cfg.SASLPassword, "SASL/PLAIN password")
	fs.BoolVar(&cfg.TLS, "kafka-tls", cfg.TLS, "Connect to the brokers over TLS")
	fs.StringVar(&cfg.CAFile, "kafka-ca-file", cfg.CAFile, "CA certificate for TLS")
	fs.DurationVar(&cfg.Timeout, "kafka-timeout", cfg.Timeout, "Kafka request timeout")
}

// BindNodeFlags registers the node flags. The returned func finishes the
// configuration after parsing.
func BindNodeFlags(fs *flag.FlagSet, cfg *NodeConfig) func() error {
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional ini configuration file")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.Float64Var(&cfg.SamplePeriod, "sample-period", cfg.SamplePeriod, "Sampling period in seconds")
	fs.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "Hostname stamped on every record")

	fs.Uint64Var(&cfg.JobID, "job-id", cfg.JobID, "Job id of the static children")
	fs.Var((*stringList)(&cfg.CGroups), "cgroup", "Cgroup path to monitor (repeatable)")
	fs.Var((*intList)(&cfg.PIDs), "pid", "Process id to monitor (repeatable)")
	fs.Var((*intList)(&cfg.TIDs), "tid", "Task id to monitor (repeatable)")

	fs.StringVar(&cfg.CpusetRoot, "cpuset-rootpath", cfg.CpusetRoot, "Cpuset directory whose entries are jobs")
	fs.StringVar(&cfg.RegexJobID, "regex-job-id", cfg.RegexJobID, "Regex extracting the job id from a cpuset entry name")
	fs.DurationVar(&cfg.RescanInterval, "rescan-interval", cfg.RescanInterval, "Cpuset rescan interval when the root cannot be watched (0 disables)")

	fs.BoolVar(&cfg.EnableTaskstats, "enable-taskstats", cfg.EnableTaskstats, "Collect netlink taskstats per task")
	fs.BoolVar(&cfg.EnableJobproc, "enable-jobproc", cfg.EnableJobproc, "Collect /proc/<tid>/io per task")
	fs.BoolVar(&cfg.EnableProcstats, "enable-procstats", cfg.EnableProcstats, "Collect node /proc stats")
	fs.BoolVar(&cfg.EnableTemperature, "enable-temperature", cfg.EnableTemperature, "Collect thermal zones")
	fs.BoolVar(&cfg.EnableRAPL, "enable-rapl", cfg.EnableRAPL, "Collect RAPL energy counters")
	fs.BoolVar(&cfg.EnableNvidia, "enable-nvidia", cfg.EnableNvidia, "Collect NVIDIA GPU metrics")

	fs.StringVar(&cfg.Emit, "emit", cfg.Emit, "Emit cumulative job totals or per-tick deltas (total, delta)")
	fs.StringVar(&cfg.ProcRoot, "proc-root", cfg.ProcRoot, "procfs mount point")
	fs.StringVar(&cfg.SysRoot, "sys-root", cfg.SysRoot, "sysfs mount point")

	BindKafkaFlags(fs, &cfg.Kafka)

	return func() error {
		cfg.Emit = strings.ToLower(cfg.Emit)
		return cfg.Validate()
	}
}

// BindCollectorFlags registers the collector flags. The returned func
// finishes the configuration after parsing.
func BindCollectorFlags(fs *flag.FlagSet, cfg *CollectorConfig) func() error {
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional ini configuration file")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Records buffered before pushing to the sinks")
	fs.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "Maximum time records stay buffered")
	fs.StringVar(&cfg.Sinks, "sinks", cfg.Sinks, "Comma separated sinks (stdout, file, postgres, elasticsearch)")
	fs.UintVar(&cfg.DedupeSize, "dedupe-size", cfg.DedupeSize, "Recently stored record keys remembered for de-duplication (0 disables)")

	fs.StringVar(&cfg.Sink.OutputDir, "output-dir", cfg.Sink.OutputDir, "Output directory of the file sink")
	fs.StringVar(&cfg.Sink.Format, "format", cfg.Sink.Format, "File sink format (parquet, jsonl, csv, tsv)")
	fs.StringVar(&cfg.Sink.PgURI, "pg-uri", cfg.Sink.PgURI, "PostgreSQL connection string")
	fs.StringVar(&cfg.Sink.ESURL, "es-url", cfg.Sink.ESURL, "Elasticsearch base URL")
	fs.StringVar(&cfg.Sink.ESIndexPrefix, "es-index-prefix", cfg.Sink.ESIndexPrefix, "Elasticsearch index name prefix")

	BindKafkaFlags(fs, &cfg.Kafka)

	return func() error {
		cfg.Sink.Format = strings.ToLower(cfg.Sink.Format)
		return cfg.Validate()
	}
}

// Parse parses args into fs. Flags not given on the command line are taken
// from the COLMET_* environment, then from the -config ini file.
func Parse(fs *flag.FlagSet, args []string, sections ...string) error {
	return ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(IniParser(fs, sections...)),
		ff.WithAllowMissingConfigFile(true),
	)
}

// IniParser returns an ff config file parser reading the given sections.
// Every flag registered in fs is declared as a key of the section it
// belongs to.
func IniParser(fs *flag.FlagSet, sections ...string) ff.ConfigFileParser {
	return func(r io.Reader, set func(name, value string) error) error {
		type binding struct {
			flag  string
			field *ini.Field
		}

		p := ini.NewParser()
		var bindings []binding
		for _, name := range sections {
			sect := p.AddSection(name)
			fs.VisitAll(func(f *flag.Flag) {
				if f.Name == "config" {
					return
				}
				key, ok := iniKey(name, f.Name)
				if !ok {
					return
				}
				bindings = append(bindings, binding{flag: f.Name, field: sect.AddString(key)})
			})
		}

		store, err := p.Parse(r)
		if err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		for _, b := range bindings {
			if !b.field.Present(store) {
				continue
			}
			if err := set(b.flag, b.field.StringVal(store)); err != nil {
				return err
			}
		}
		return nil
	}
}

func iniKey(section, flagName string) (string, bool) {
	kafka := strings.HasPrefix(flagName, kafkaFlagPrefix)
	if section == SectionKafka {
		return strings.TrimPrefix(flagName, kafkaFlagPrefix), kafka
	}
	return flagName, !kafka
}

// stringList is a repeatable flag. Each value may itself be comma separated,
// which is how the environment twin carries several entries.
type stringList []string

func (l *stringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, splitList(v)...)
	return nil
}

type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(v string) error {
	for _, p := range splitList(v) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", p, err)
		}
		*l = append(*l, n)
	}
	return nil
}
