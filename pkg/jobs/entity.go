// Package jobs holds the aggregation tree: jobs own processes, cgroups and
// tasks, leaves are sampled from a data source every tick and their deltas
// are folded upward into one record per job and source.
package jobs

import (
	"fmt"
	"maps"
	"slices"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/collecting"
	"colmet/pkg/counters"
)

// Source is the part of a data source the tree samples.
type Source interface {
	Name() string
	Schema() *counters.Schema
	Fetch(h collecting.Handle) *counters.Unpacked
}

// Stamp carries the headers shared by every record of one tick.
type Stamp struct {
	Timestamp uint64
	JobID     uint64
	Hostname  string
}

type entity interface {
	update(st Stamp)
	// delta is this tick's contribution, nil when nothing was observed.
	delta() *counters.Unpacked
	total() *counters.Unpacked
	String() string
}

// ============================================================================
// Leaves
// ============================================================================

// leaf samples absolute values and turns them into deltas against its own
// previous sample: add counters are differenced, gauges carry the fresh
// reading. The first sample is its own baseline.
type leaf struct {
	src    Source
	handle collecting.Handle
	last   *counters.Unpacked
	d      *counters.Unpacked
	seen   bool
}

func (l *leaf) update(st Stamp) {
	l.d = nil
	stats := l.src.Fetch(l.handle)
	if stats == nil {
		return
	}
	prev := l.last
	if prev == nil {
		prev = stats
	}

	d := stats.Clone()
	if err := counters.Change(stats, prev, d); err != nil {
		log.Errorf("%s: %v", l.src.Name(), err)
		return
	}
	stats.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
	d.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
	l.last = stats
	l.d = d
	l.seen = true
}

func (l *leaf) delta() *counters.Unpacked { return l.d }
func (l *leaf) total() *counters.Unpacked { return l.last }

// Task is one OS thread.
type Task struct {
	leaf
	TID int
}

func NewTask(tid int, src Source) *Task {
	return &Task{leaf: leaf{src: src, handle: collecting.Handle(tid)}, TID: tid}
}

func (t *Task) String() string { return fmt.Sprintf("task %d", t.TID) }

// NodeStats samples a node-level source. It is the only child of job 0.
type NodeStats struct {
	leaf
}

func NewNodeStats(src Source) *NodeStats {
	return &NodeStats{leaf: leaf{src: src, handle: collecting.NodeHandle}}
}

func (n *NodeStats) String() string { return "node " + n.src.Name() }

// ============================================================================
// Composites
// ============================================================================

// group folds the deltas of a changing set of tasks.
type group struct {
	src   Source
	name  string
	tasks map[int]*Task
	d, t  *counters.Unpacked
}

func newGroup(src Source, name string) group {
	return group{src: src, name: name, tasks: make(map[int]*Task)}
}

func (g *group) delta() *counters.Unpacked { return g.d }
func (g *group) total() *counters.Unpacked { return g.t }
func (g *group) String() string            { return g.name }

// Len returns the number of tasks currently tracked.
func (g *group) Len() int { return len(g.tasks) }

// TIDs returns the tracked task ids in ascending order.
func (g *group) TIDs() []int { return slices.Sorted(maps.Keys(g.tasks)) }

// updateTasks samples tids, drops every tracked task that was not seen this
// tick and folds the others. It reports whether any task contributed.
func (g *group) updateTasks(st Stamp, tids []int) bool {
	g.d = nil
	for _, tid := range tids {
		task, ok := g.tasks[tid]
		if !ok {
			task = NewTask(tid, g.src)
			g.tasks[tid] = task
		}
		task.update(st)
	}

	acc := counters.Empty(g.src.Schema())
	n := 0
	for _, tid := range g.TIDs() {
		task := g.tasks[tid]
		if !task.seen {
			log.Debugf("Task %d no longer exists, removing it from %s", tid, g.name)
			delete(g.tasks, tid)
			continue
		}
		task.seen = false
		if err := acc.Accumulate(task.d); err != nil {
			log.Errorf("%s: skipping task %d: %v", g.name, tid, err)
			continue
		}
		n++
	}
	if n == 0 {
		return false
	}

	acc.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
	g.d = acc
	if g.t == nil {
		g.t = acc.Clone()
	} else if err := g.t.Accumulate(acc); err != nil {
		log.Errorf("%s: %v", g.name, err)
	}
	g.t.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
	return true
}

// Process is an OS process and the tasks listed under /proc/<pid>/task.
type Process struct {
	group
	PID  int
	enum Enumerator
}

func NewProcess(pid int, src Source, enum Enumerator) *Process {
	return &Process{group: newGroup(src, fmt.Sprintf("process %d", pid)), PID: pid, enum: enum}
}

func (p *Process) update(st Stamp) {
	tids, err := p.enum.ProcessTasks(p.PID)
	if err != nil {
		log.Debugf("%s: %v", p.name, err)
	}
	p.updateTasks(st, tids)
}

// CGroup is the set of tasks listed in a control group.
type CGroup struct {
	group
	Path string
	enum Enumerator
}

func NewCGroup(path string, src Source, enum Enumerator) *CGroup {
	return &CGroup{group: newGroup(src, "cgroup "+path), Path: path, enum: enum}
}

func (c *CGroup) update(st Stamp) {
	tids, err := c.enum.CGroupTasks(c.Path)
	if err != nil {
		log.Debugf("%s: %v", c.name, err)
	}
	if len(tids) == 0 {
		log.Infof("No tasks in %s", c.name)
	}
	c.updateTasks(st, tids)
}
