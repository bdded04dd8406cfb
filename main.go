package main

import (
	"fmt"
	"os"

	"colmet/pkg/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "node", "n":
		cmd.Node(args)
	case "collector", "c":
		cmd.Collector(args)
	case "snapshot", "ss":
		cmd.Snapshot(args)
	case "schemas":
		cmd.Schemas(args)
	case "graph", "g":
		cmd.Graph(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`colmet - per-job resource usage collection for compute clusters

Usage:
  colmet <command> [flags]

Commands:
  node, n         Sample jobs every period and send the records to Kafka
  collector, c    Receive records from Kafka and store them in the sinks
  snapshot, ss    Sample twice, one period apart, and print the records
  schemas         Print the layout of the record schemas
  graph, g        Generate an HTML chart page from a stored file

Every flag can also be set from the environment (COLMET_<FLAG>, dashes as
underscores) or from the ini file given with -config.

Node Flags:
  -sample-period float    Sampling period in seconds (default: 5)
  -job-id int             Job id of the static children
  -cgroup, -pid, -tid     Static children (repeatable)
  -cpuset-rootpath path   Cpuset directory whose entries are jobs
  -regex-job-id string    Job id pattern of a cpuset entry (default: _(\d+)$)
  -enable-taskstats       Netlink taskstats per task (default: true)
  -enable-jobproc         /proc/<tid>/io per task
  -enable-procstats       Node /proc counters (default: true)
  -enable-temperature     Thermal zones
  -enable-rapl            RAPL energy counters
  -enable-nvidia          NVIDIA GPUs
  -emit string            total or delta (default: total)

Collector Flags:
  -sinks string           stdout, file, postgres, elasticsearch (default: stdout)
  -buffer-size int        Records buffered before a flush (default: 100)
  -flush-interval dur     Maximum buffering time (default: 10s)
  -dedupe-size int        Remembered record keys, 0 disables (default: 8192)
  -output-dir path        File sink directory
  -format string          parquet, jsonl, csv, tsv (default: jsonl)
  -pg-uri string          PostgreSQL connection string
  -es-url string          Elasticsearch base URL

Kafka Flags:
  -kafka-brokers string   Comma separated broker addresses
  -kafka-topic string     Topic (default: colmet)
  -kafka-sasl-user, -kafka-sasl-password, -kafka-tls, -kafka-ca-file

Examples:
  # Sample the jobs of a cpuset hierarchy
  colmet node -cpuset-rootpath /dev/cpuset/oar -enable-rapl -kafka-brokers kafka:9092

  # Store everything as parquet
  colmet collector -sinks file -format parquet -output-dir /data/colmet -kafka-brokers kafka:9092

  # One-off look at a process
  colmet snapshot -job-id 1 -pid 4242 -sample-period 1

  # Charts from a stored file
  colmet graph -output graphs/ /data/colmet/taskstats_default-job42.parquet
`)
}
