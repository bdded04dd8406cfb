// Package cmd implements the colmet subcommands.
package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/config"
	"colmet/pkg/counters"
	"colmet/pkg/metrics"
	"colmet/pkg/utils"
)

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseNodeConfig parses the node flags, environment and ini sections.
// Configuration errors are fatal.
func parseNodeConfig(name string, args []string) *config.NodeConfig {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg := config.NewNodeConfig()
	finish := config.BindNodeFlags(fs, cfg)
	if err := config.Parse(fs, args, config.SectionNode, config.SectionKafka); err != nil {
		log.Fatalf("Failed to parse configuration: %v", err)
	}
	utils.InitLogging(cfg.Verbose)
	if err := finish(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func parseCollectorConfig(name string, args []string) *config.CollectorConfig {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg := config.NewCollectorConfig()
	finish := config.BindCollectorFlags(fs, cfg)
	err := config.Parse(fs, args, config.SectionCollector, config.SectionSinks, config.SectionKafka)
	if err != nil {
		log.Fatalf("Failed to parse configuration: %v", err)
	}
	utils.InitLogging(cfg.Verbose)
	if err := finish(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func mustRegistry() *counters.Registry {
	reg, err := metrics.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to register schemas: %v", err)
	}
	return reg
}
