package collecting

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
	"colmet/pkg/probing"
)

// userHZ is the clock tick procfs divides /proc/stat cpu times by.
const userHZ = 100

// Procstats samples node wide counters from /proc.
type Procstats struct {
	root string
	fs   procfs.FS
	err  error
}

func NewProcstats(procRoot string) *Procstats {
	if procRoot == "" {
		procRoot = defaultProcRoot
	}
	fs, err := procfs.NewFS(procRoot)
	return &Procstats{root: procRoot, fs: fs, err: err}
}

func (p *Procstats) Name() string             { return "procstats" }
func (p *Procstats) Schema() *counters.Schema { return metrics.Procstats }
func (p *Procstats) Level() Level             { return NodeLevel }
func (p *Procstats) Close() error             { return nil }

func (p *Procstats) Fetch(Handle) *counters.Unpacked {
	if p.err != nil {
		log.Debugf("procstats: %v", p.err)
		return nil
	}
	r := counters.Empty(metrics.Procstats)
	ok := false
	for _, read := range []func(*counters.Unpacked) error{
		p.readUptime, p.readMeminfo, p.readVmstat, p.readStat, p.readLoadavg,
	} {
		if err := read(r); err != nil {
			log.Debugf("procstats: %v", err)
			continue
		}
		ok = true
	}
	if !ok {
		return nil
	}
	return r
}

func (p *Procstats) path(name string) string { return filepath.Join(p.root, name) }

// uptime and vmstat have no procfs reader.
func (p *Procstats) readUptime(r *counters.Unpacked) error {
	v, err := probing.File(p.path("uptime"))
	if err != nil {
		return err
	}
	fields := strings.Fields(v)
	for i, name := range []string{"uptime_total", "uptime_idle"} {
		if i >= len(fields) {
			break
		}
		f, err := probing.ParseFloat64(fields[i])
		if err != nil {
			return err
		}
		set(p.Name(), r, name, uint64(f))
	}
	return nil
}

func (p *Procstats) readVmstat(r *counters.Unpacked) error {
	lines, err := probing.FileLines(p.path("vmstat"))
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(metrics.VmstatKeys))
	for _, k := range metrics.VmstatKeys {
		want[k] = true
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || !want[fields[0]] {
			continue
		}
		if n, err := probing.ParseUint64(fields[1]); err == nil {
			set(p.Name(), r, "vmstat_"+fields[0], n)
		}
	}
	return nil
}

func (p *Procstats) readMeminfo(r *counters.Unpacked) error {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return err
	}
	for _, k := range metrics.MeminfoKeys {
		get, ok := meminfoFields[k]
		if !ok {
			continue
		}
		if v := get(&mi); v != nil {
			set(p.Name(), r, metrics.MeminfoField(k), *v)
		}
	}
	return nil
}

func (p *Procstats) readStat(r *counters.Unpacked) error {
	st, err := p.fs.Stat()
	if err != nil {
		return err
	}
	cpu := st.CPUTotal
	seconds := map[string]float64{
		"user": cpu.User, "nice": cpu.Nice, "system": cpu.System, "idle": cpu.Idle,
		"iowait": cpu.Iowait, "irq": cpu.IRQ, "softirq": cpu.SoftIRQ,
		"guest": cpu.Guest, "guest_nice": cpu.GuestNice,
	}
	for _, col := range metrics.StatCPUColumns {
		// back to clock ticks, the unit the kernel counts in
		set(p.Name(), r, "stat_cpu_"+col, uint64(math.Round(seconds[col]*userHZ)))
	}
	single := map[string]uint64{
		"intr":          st.IRQTotal,
		"ctxt":          st.ContextSwitches,
		"processes":     st.ProcessCreated,
		"procs_blocked": st.ProcessesBlocked,
	}
	for _, k := range metrics.StatKeys {
		set(p.Name(), r, "stat_"+k, single[k])
	}
	return nil
}

func (p *Procstats) readLoadavg(r *counters.Unpacked) error {
	avg, err := p.fs.LoadAvg()
	if err != nil {
		return err
	}
	set(p.Name(), r, "loadavg_1min", avg.Load1)
	set(p.Name(), r, "loadavg_5min", avg.Load5)
	set(p.Name(), r, "loadavg_15min", avg.Load15)

	// procfs stops at the averages; the runnable/total column is read here
	v, err := probing.File(p.path("loadavg"))
	if err != nil {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) < 4 {
		return nil
	}
	runnable, total, ok := strings.Cut(fields[3], "/")
	if !ok {
		return fmt.Errorf("loadavg: malformed entity count %q", fields[3])
	}
	if f, err := probing.ParseFloat64(runnable); err == nil {
		set(p.Name(), r, "loadavg_runnable", f)
	}
	if f, err := probing.ParseFloat64(total); err == nil {
		set(p.Name(), r, "loadavg_total_threads", f)
	}
	return nil
}

var meminfoFields = map[string]func(*procfs.Meminfo) *uint64{
	"MemTotal":          func(m *procfs.Meminfo) *uint64 { return m.MemTotal },
	"MemFree":           func(m *procfs.Meminfo) *uint64 { return m.MemFree },
	"Buffers":           func(m *procfs.Meminfo) *uint64 { return m.Buffers },
	"Cached":            func(m *procfs.Meminfo) *uint64 { return m.Cached },
	"SwapCached":        func(m *procfs.Meminfo) *uint64 { return m.SwapCached },
	"Active":            func(m *procfs.Meminfo) *uint64 { return m.Active },
	"Inactive":          func(m *procfs.Meminfo) *uint64 { return m.Inactive },
	"Unevictable":       func(m *procfs.Meminfo) *uint64 { return m.Unevictable },
	"Mlocked":           func(m *procfs.Meminfo) *uint64 { return m.Mlocked },
	"SwapTotal":         func(m *procfs.Meminfo) *uint64 { return m.SwapTotal },
	"SwapFree":          func(m *procfs.Meminfo) *uint64 { return m.SwapFree },
	"Dirty":             func(m *procfs.Meminfo) *uint64 { return m.Dirty },
	"Writeback":         func(m *procfs.Meminfo) *uint64 { return m.Writeback },
	"AnonPages":         func(m *procfs.Meminfo) *uint64 { return m.AnonPages },
	"Mapped":            func(m *procfs.Meminfo) *uint64 { return m.Mapped },
	"Shmem":             func(m *procfs.Meminfo) *uint64 { return m.Shmem },
	"Slab":              func(m *procfs.Meminfo) *uint64 { return m.Slab },
	"SReclaimable":      func(m *procfs.Meminfo) *uint64 { return m.SReclaimable },
	"SUnreclaim":        func(m *procfs.Meminfo) *uint64 { return m.SUnreclaim },
	"KernelStack":       func(m *procfs.Meminfo) *uint64 { return m.KernelStack },
	"PageTables":        func(m *procfs.Meminfo) *uint64 { return m.PageTables },
	"NFS_Unstable":      func(m *procfs.Meminfo) *uint64 { return m.NFSUnstable },
	"Bounce":            func(m *procfs.Meminfo) *uint64 { return m.Bounce },
	"WritebackTmp":      func(m *procfs.Meminfo) *uint64 { return m.WritebackTmp },
	"CommitLimit":       func(m *procfs.Meminfo) *uint64 { return m.CommitLimit },
	"Committed_AS":      func(m *procfs.Meminfo) *uint64 { return m.CommittedAS },
	"VmallocTotal":      func(m *procfs.Meminfo) *uint64 { return m.VmallocTotal },
	"VmallocUsed":       func(m *procfs.Meminfo) *uint64 { return m.VmallocUsed },
	"VmallocChunk":      func(m *procfs.Meminfo) *uint64 { return m.VmallocChunk },
	"HardwareCorrupted": func(m *procfs.Meminfo) *uint64 { return m.HardwareCorrupted },
	"AnonHugePages":     func(m *procfs.Meminfo) *uint64 { return m.AnonHugePages },
	"HugePages_Total":   func(m *procfs.Meminfo) *uint64 { return m.HugePagesTotal },
	"HugePages_Free":    func(m *procfs.Meminfo) *uint64 { return m.HugePagesFree },
	"HugePages_Rsvd":    func(m *procfs.Meminfo) *uint64 { return m.HugePagesRsvd },
	"HugePages_Surp":    func(m *procfs.Meminfo) *uint64 { return m.HugePagesSurp },
	"Hugepagesize":      func(m *procfs.Meminfo) *uint64 { return m.Hugepagesize },
	"DirectMap4k":       func(m *procfs.Meminfo) *uint64 { return m.DirectMap4k },
	"DirectMap2M":       func(m *procfs.Meminfo) *uint64 { return m.DirectMap2M },
}
