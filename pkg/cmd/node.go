package cmd

import (
	"time"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/collecting"
	"colmet/pkg/node"
	"colmet/pkg/transport"
	"colmet/pkg/utils"
)

// Node samples the configured jobs until interrupted and ships every tick
// to Kafka.
func Node(args []string) {
	cfg := parseNodeConfig("node", args)
	if err := cfg.Kafka.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	mgr := collecting.NewManager(cfg)
	defer mgr.Close()

	session := utils.NewSession(cfg.Hostname)
	sender, err := transport.NewKafkaSender(&cfg.Kafka, session)
	if err != nil {
		log.Fatalf("Failed to create Kafka sender: %v", err)
	}
	defer func() {
		if err := sender.Close(); err != nil {
			log.Errorf("Closing Kafka sender: %v", err)
		}
	}()

	n, err := node.New(cfg, mgr, sender)
	if err != nil {
		log.Fatalf("Failed to set up node: %v", err)
	}

	log.Infof("Node session %s started", session)
	start := time.Now()
	if err := n.Run(ctx); err != nil {
		log.Errorf("Node stopped with error: %v", err)
	}
	log.Infof("Node ran for %v", time.Since(start).Round(time.Second))
}
