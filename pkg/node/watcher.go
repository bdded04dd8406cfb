package node

import (
	"context"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/jobs"
)

// Watcher keeps the dynamic jobs of a job set in line with the cpuset
// directory. It only touches the set, under the set's lock; the next tick
// picks the changes up.
type Watcher struct {
	root     string
	re       *regexp.Regexp
	interval time.Duration
	set      *jobs.Set
}

func NewWatcher(root string, re *regexp.Regexp, interval time.Duration, set *jobs.Set) *Watcher {
	return &Watcher{root: root, re: re, interval: interval, set: set}
}

// Rescan lists the cpuset root and syncs the job set with it.
func (w *Watcher) Rescan() error {
	found, err := jobs.Discover(w.root, w.re)
	if err != nil {
		return err
	}
	w.set.Sync(found)
	return nil
}

// Run rescans once, then on every create, remove or rename under the root
// until ctx ends. When the root cannot be watched it falls back to
// rescanning every interval.
func (w *Watcher) Run(ctx context.Context) error {
	// watch before the first scan so no entry slips between the two
	fw, werr := w.watch()
	if err := w.Rescan(); err != nil {
		log.Errorf("Job scan failed: %v", err)
	}
	if werr != nil {
		log.Warnf("Cannot watch %s (%v), rescanning every %v", w.root, werr, w.interval)
		return w.poll(ctx)
	}
	defer fw.Close()
	log.Infof("Watching %s for jobs", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Watching %s: %v", w.root, err)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debugf("cpuset event: %s", ev)
			if err := w.Rescan(); err != nil {
				log.Errorf("Job scan failed: %v", err)
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.root) {
				log.Warnf("%s was removed, rescanning every %v", w.root, w.interval)
				return w.poll(ctx)
			}
		}
	}
}

func (w *Watcher) watch() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

func (w *Watcher) poll(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Rescan(); err != nil {
				log.Errorf("Job scan failed: %v", err)
			}
		}
	}
}
