// Package node runs the sampling side: an aligned tick loop that walks the
// job set, packs the resulting records and hands them to a transport.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"colmet/pkg/collecting"
	"colmet/pkg/config"
	"colmet/pkg/counters"
	"colmet/pkg/jobs"
	"colmet/pkg/transport"
)

// ErrNothingToMonitor is returned when no job, cpuset root or node-level
// source is configured.
var ErrNothingToMonitor = errors.New("nothing to monitor: give a job (-cgroup, -pid, -tid), -cpuset-rootpath or a node-level source")

// Node owns the job set and the tick loop.
type Node struct {
	cfg    *config.NodeConfig
	set    *jobs.Set
	sender transport.Sender
	emit   jobs.Emission
	period time.Duration
	now    func() time.Time

	sent  int
	ticks int
}

// New builds the job set from cfg and the sources opened by mgr. sender may
// be nil when the caller only uses Sample.
func New(cfg *config.NodeConfig, mgr *collecting.Manager, sender transport.Sender) (*Node, error) {
	taskSources := asSources(mgr.ByLevel(collecting.TaskLevel))
	nodeSources := asSources(mgr.ByLevel(collecting.NodeLevel))

	n := &Node{
		cfg:    cfg,
		set:    jobs.NewSet(taskSources, jobs.NewProcFS(cfg.ProcRoot)),
		sender: sender,
		emit:   jobs.EmitTotal,
		period: cfg.Period(),
		now:    time.Now,
	}
	if cfg.Emit == config.EmitDelta {
		n.emit = jobs.EmitDelta
	}

	if len(nodeSources) > 0 {
		n.set.AddJob(jobs.NewNodeJob(nodeSources))
	}
	if cfg.HasStaticJob() {
		err := n.set.Add(cfg.JobID, jobs.Children{TIDs: cfg.TIDs, PIDs: cfg.PIDs, CGroups: cfg.CGroups})
		if err != nil {
			return nil, err
		}
	}
	if n.set.Len() == 0 && cfg.CpusetRoot == "" {
		return nil, ErrNothingToMonitor
	}
	if cfg.CpusetRoot != "" && len(taskSources) == 0 {
		log.Warnf("No task-level source enabled, jobs under %s will report nothing", cfg.CpusetRoot)
	}
	return n, nil
}

func asSources(ds []collecting.DataSource) []jobs.Source {
	out := make([]jobs.Source, len(ds))
	for i, d := range ds {
		out[i] = d
	}
	return out
}

// Jobs exposes the job set, shared with the watcher.
func (n *Node) Jobs() *jobs.Set { return n.set }

// NextTick returns the first multiple of period since the epoch strictly
// after now. Aligning on wall clock keeps drift from accumulating.
func NextTick(now time.Time, period time.Duration) time.Time {
	p := period.Nanoseconds()
	if p <= 0 {
		return now
	}
	return time.Unix(0, (now.UnixNano()/p+1)*p)
}

// Sample runs one tick and returns the records without sending them.
func (n *Node) Sample() []*counters.Unpacked {
	ts := uint64(n.now().Unix())
	return n.set.Update(ts, n.cfg.Hostname, n.emit)
}

// Tick samples every job and sends the batch.
func (n *Node) Tick(ctx context.Context) error {
	start := n.now()
	recs := n.Sample()
	n.ticks++
	log.Debugf("Gathered %d records in %v", len(recs), n.now().Sub(start))
	if len(recs) == 0 {
		return nil
	}

	buf, err := counters.PackUnpacked(recs)
	if err != nil {
		return fmt.Errorf("packing batch: %w", err)
	}
	if err := n.sender.Send(ctx, buf); err != nil {
		return err
	}
	n.sent += len(recs)
	log.Debugf("%d records (%d bytes) have been sent", len(recs), len(buf))
	return nil
}

// Run ticks until ctx ends. Only the wait between ticks is interrupted: a
// tick that has started is completed and sent.
func (n *Node) Run(ctx context.Context) error {
	if n.sender == nil {
		return fmt.Errorf("node has no transport")
	}

	g, ctx := errgroup.WithContext(ctx)
	if n.cfg.CpusetRoot != "" {
		re, err := n.cfg.JobIDPattern()
		if err != nil {
			return err
		}
		w := NewWatcher(n.cfg.CpusetRoot, re, n.cfg.RescanInterval, n.set)
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error { return n.loop(ctx) })

	err := g.Wait()
	log.Infof("Node stopped after %d ticks, %d records sent", n.ticks, n.sent)
	return err
}

func (n *Node) loop(ctx context.Context) error {
	log.Infof("Sampling every %v as %s", n.period, n.cfg.Hostname)
	for {
		wait := NextTick(n.now(), n.period).Sub(n.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.Kafka.Timeout)
		err := n.Tick(sendCtx)
		cancel()
		if err != nil {
			log.Errorf("Tick failed: %v", err)
		}
	}
}
