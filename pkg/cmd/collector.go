package cmd

import (
	log "github.com/sirupsen/logrus"

	"colmet/pkg/collector"
	"colmet/pkg/exporting"
	"colmet/pkg/transport"
)

// Collector consumes node batches from Kafka and stores them in the
// configured sinks until interrupted.
func Collector(args []string) {
	cfg := parseCollectorConfig("collector", args)
	if err := cfg.Kafka.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	reg := mustRegistry()

	sinks, err := exporting.NewSinks(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open sinks: %v", err)
	}
	defer exporting.CloseAll(sinks)

	recv, err := transport.NewKafkaReceiver(&cfg.Kafka)
	if err != nil {
		log.Fatalf("Failed to create Kafka receiver: %v", err)
	}
	defer func() {
		if err := recv.Close(); err != nil {
			log.Errorf("Closing Kafka receiver: %v", err)
		}
	}()

	c, err := collector.New(cfg, reg, recv, sinks)
	if err != nil {
		log.Fatalf("Failed to set up collector: %v", err)
	}

	log.Infof("Collecting from topic %s into %v", cfg.Kafka.Topic, cfg.SinkList())
	if err := c.Run(ctx); err != nil {
		log.Errorf("Collector stopped with error: %v", err)
	}
}
