package collecting

import (
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

// Jobproc samples the I/O accounting file of one task.
type Jobproc struct {
	fs  procfs.FS
	err error
}

func NewJobproc(procRoot string) *Jobproc {
	if procRoot == "" {
		procRoot = defaultProcRoot
	}
	fs, err := procfs.NewFS(procRoot)
	return &Jobproc{fs: fs, err: err}
}

func (j *Jobproc) Name() string             { return "jobprocstats" }
func (j *Jobproc) Schema() *counters.Schema { return metrics.Jobprocstats }
func (j *Jobproc) Level() Level             { return TaskLevel }
func (j *Jobproc) Close() error             { return nil }

func (j *Jobproc) Fetch(h Handle) *counters.Unpacked {
	if j.err != nil {
		log.Debugf("jobprocstats: %v", j.err)
		return nil
	}
	proc, err := j.fs.Proc(int(h))
	if err != nil {
		log.Debugf("jobprocstats: %v", err)
		return nil
	}
	pio, err := proc.IO()
	if err != nil {
		log.Debugf("jobprocstats: tid %d: %v", h, err)
		return nil
	}

	r := counters.Empty(metrics.Jobprocstats)
	for k, v := range map[string]any{
		"rchar":                 pio.RChar,
		"wchar":                 pio.WChar,
		"syscr":                 pio.SyscR,
		"syscw":                 pio.SyscW,
		"read_bytes":            pio.ReadBytes,
		"write_bytes":           pio.WriteBytes,
		"cancelled_write_bytes": pio.CancelledWriteBytes,
	} {
		set(j.Name(), r, k, v)
	}
	return r
}
