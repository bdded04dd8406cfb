package jobs

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
)

// ErrNoChildren is returned for a job with nothing to monitor.
var ErrNoChildren = errors.New("job has no task, process or cgroup to monitor")

// NodeJobID is the job under which node-level sources report.
const NodeJobID uint64 = 0

// Emission selects which record a job reports each tick.
type Emission int

const (
	// EmitTotal reports the cumulative record since the job was first seen.
	EmitTotal Emission = iota
	// EmitDelta reports this tick's fold only.
	EmitDelta
)

// Children lists what a job monitors.
type Children struct {
	TIDs    []int
	PIDs    []int
	CGroups []string
}

func (c Children) Empty() bool {
	return len(c.TIDs)+len(c.PIDs)+len(c.CGroups) == 0
}

// tree is one job's view through one source.
type tree struct {
	src      Source
	children []entity
	d, t     *counters.Unpacked
	// absolute trees report their children's latest readings as the total
	// instead of a running sum of deltas.
	absolute bool
}

func (tr *tree) update(st Stamp) {
	for _, c := range tr.children {
		c.update(st)
	}

	tr.d = nil
	acc := counters.Empty(tr.src.Schema())
	n := 0
	for _, c := range tr.children {
		d := c.delta()
		if d == nil {
			continue
		}
		if err := acc.Accumulate(d); err != nil {
			log.Errorf("job %d: skipping %s: %v", st.JobID, c, err)
			continue
		}
		n++
	}
	if n == 0 {
		return
	}

	acc.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
	tr.d = acc
	if tr.absolute {
		tr.t = tr.latest()
		tr.t.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
		return
	}
	if tr.t == nil {
		tr.t = acc.Clone()
	} else if err := tr.t.Accumulate(acc); err != nil {
		log.Errorf("job %d: %v", st.JobID, err)
	}
	tr.t.SetHeaders(st.Hostname, st.JobID, st.Timestamp)
}

// latest folds the children's last absolute samples.
func (tr *tree) latest() *counters.Unpacked {
	acc := counters.Empty(tr.src.Schema())
	for _, c := range tr.children {
		t := c.total()
		if t == nil {
			continue
		}
		if err := acc.Accumulate(t); err != nil {
			log.Errorf("skipping %s: %v", c, err)
		}
	}
	return acc
}

// Job is the monitored unit. It keeps one aggregation tree per source.
type Job struct {
	ID    uint64
	trees []*tree
}

// NewJob builds a job whose children are sampled from every source.
func NewJob(id uint64, children Children, sources []Source, enum Enumerator) (*Job, error) {
	if children.Empty() {
		return nil, ErrNoChildren
	}
	j := &Job{ID: id}
	for _, src := range sources {
		tr := &tree{src: src}
		for _, tid := range children.TIDs {
			tr.children = append(tr.children, NewTask(tid, src))
		}
		for _, pid := range children.PIDs {
			tr.children = append(tr.children, NewProcess(pid, src, enum))
		}
		for _, path := range children.CGroups {
			tr.children = append(tr.children, NewCGroup(path, src, enum))
		}
		j.trees = append(j.trees, tr)
	}
	log.Infof("Job %d contains %d items", id, len(children.TIDs)+len(children.PIDs)+len(children.CGroups))
	return j, nil
}

// NewNodeJob builds job 0 with one NodeStats child per node-level source.
// Its total is the latest node reading.
func NewNodeJob(sources []Source) *Job {
	j := &Job{ID: NodeJobID}
	for _, src := range sources {
		j.trees = append(j.trees, &tree{src: src, children: []entity{NewNodeStats(src)}, absolute: true})
	}
	return j
}

// Update runs one tick and returns one record per source that observed
// anything. Returned records are copies owned by the caller.
func (j *Job) Update(timestamp uint64, hostname string, emit Emission) []*counters.Unpacked {
	st := Stamp{Timestamp: timestamp, JobID: j.ID, Hostname: hostname}
	out := make([]*counters.Unpacked, 0, len(j.trees))
	for _, tr := range j.trees {
		tr.update(st)
		r := tr.t
		if emit == EmitDelta {
			r = tr.d
		}
		if tr.d == nil || r == nil {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// Sources returns the names of the sources the job is sampled through.
func (j *Job) Sources() []string {
	names := make([]string, len(j.trees))
	for i, tr := range j.trees {
		names[i] = tr.src.Name()
	}
	return names
}
