package jobs

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
)

// Set is the collection of monitored jobs. The tick loop and the job
// watcher share it; both hold the lock for their whole pass.
type Set struct {
	mu      sync.Mutex
	jobs    map[uint64]*Job
	dynamic map[uint64]string
	sources []Source
	enum    Enumerator
}

// NewSet returns an empty set whose jobs are sampled through the given
// task-level sources.
func NewSet(sources []Source, enum Enumerator) *Set {
	return &Set{
		jobs:    make(map[uint64]*Job),
		dynamic: make(map[uint64]string),
		sources: sources,
		enum:    enum,
	}
}

// Add creates and adds a static job.
func (s *Set) Add(id uint64, children Children) error {
	j, err := NewJob(id, children, s.sources, s.enum)
	if err != nil {
		return fmt.Errorf("job %d: %w", id, err)
	}
	s.AddJob(j)
	return nil
}

// AddJob adds a prebuilt job, replacing any job with the same id.
func (s *Set) AddJob(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *Set) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	delete(s.dynamic, id)
	return ok
}

func (s *Set) Has(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// IDs returns the job ids in ascending order.
func (s *Set) IDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.jobs))
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Sync reconciles the discovered jobs (id to cgroup path) with the set:
// new ids get a job with that cgroup as only child, discovered jobs that
// disappeared are dropped. Static jobs are left alone.
func (s *Set) Sync(discovered map[uint64]string) (added, removed []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(discovered)) {
		path := discovered[id]
		if old, ok := s.dynamic[id]; ok && old == path {
			continue
		}
		if _, static := s.jobs[id]; static && s.dynamic[id] == "" {
			log.Warnf("Job %d found under %s is already monitored", id, path)
			continue
		}
		j, err := NewJob(id, Children{CGroups: []string{path}}, s.sources, s.enum)
		if err != nil {
			log.Errorf("job %d: %v", id, err)
			continue
		}
		s.jobs[id] = j
		s.dynamic[id] = path
		added = append(added, id)
	}

	for _, id := range slices.Sorted(maps.Keys(s.dynamic)) {
		if _, ok := discovered[id]; ok {
			continue
		}
		delete(s.jobs, id)
		delete(s.dynamic, id)
		removed = append(removed, id)
	}

	if len(added)+len(removed) > 0 {
		log.Infof("Job list updated: added %v, removed %v", added, removed)
	}
	return added, removed
}

// Update runs one tick over every job in ascending id order and returns
// the records to emit. Every record carries the same timestamp.
func (s *Set) Update(timestamp uint64, hostname string, emit Emission) []*counters.Unpacked {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*counters.Unpacked
	for _, id := range slices.Sorted(maps.Keys(s.jobs)) {
		recs := s.jobs[id].Update(timestamp, hostname, emit)
		log.Debugf("Job %d: %d records", id, len(recs))
		out = append(out, recs...)
	}
	return out
}
