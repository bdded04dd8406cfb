package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/collecting"
	"colmet/pkg/config"
	"colmet/pkg/exporting"
	"colmet/pkg/node"
)

// Snapshot samples the configured jobs twice, one period apart, and prints
// the second sample. Nothing is sent.
func Snapshot(args []string) {
	cfg := parseNodeConfig("snapshot", args)

	ctx, stop := signalContext()
	defer stop()

	mgr := collecting.NewManager(cfg)
	defer mgr.Close()

	if err := runSnapshot(ctx, cfg, mgr, os.Stdout); err != nil {
		log.Fatalf("Snapshot failed: %v", err)
	}
}

func runSnapshot(ctx context.Context, cfg *config.NodeConfig, mgr *collecting.Manager, w io.Writer) error {
	n, err := node.New(cfg, mgr, nil)
	if err != nil {
		return err
	}
	if cfg.CpusetRoot != "" {
		re, err := cfg.JobIDPattern()
		if err != nil {
			return err
		}
		if err := node.NewWatcher(cfg.CpusetRoot, re, 0, n.Jobs()).Rescan(); err != nil {
			return err
		}
	}

	log.Debug("Taking initial sample...")
	n.Sample()

	log.Debugf("Waiting %v for the second sample...", cfg.Period())
	timer := time.NewTimer(cfg.Period())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	recs := n.Sample()
	if len(recs) == 0 {
		return fmt.Errorf("no records: every job is empty")
	}
	for _, r := range recs {
		if _, err := fmt.Fprintln(w, exporting.FormatRecord(r)); err != nil {
			return err
		}
	}
	return nil
}
