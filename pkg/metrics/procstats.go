package metrics

import (
	"strings"

	"colmet/pkg/counters"
)

// MeminfoKeys are the /proc/meminfo entries kept in Procstats, lowercased
// and prefixed with "meminfo_" in the schema.
var MeminfoKeys = []string{
	"MemTotal", "MemFree", "Buffers", "Cached", "SwapCached", "Active",
	"Inactive", "Unevictable", "Mlocked", "SwapTotal", "SwapFree", "Dirty",
	"Writeback", "AnonPages", "Mapped", "Shmem", "Slab", "SReclaimable",
	"SUnreclaim", "KernelStack", "PageTables", "NFS_Unstable", "Bounce",
	"WritebackTmp", "CommitLimit", "Committed_AS", "VmallocTotal",
	"VmallocUsed", "VmallocChunk", "HardwareCorrupted", "AnonHugePages",
	"HugePages_Total", "HugePages_Free", "HugePages_Rsvd", "HugePages_Surp",
	"Hugepagesize", "DirectMap4k", "DirectMap2M",
}

// VmstatKeys are the /proc/vmstat entries kept in Procstats.
var VmstatKeys = []string{"pgpgin", "pgpgout", "pswpin", "pswpout", "pgfault", "pgmajfault"}

// StatCPUColumns name the columns of the aggregate "cpu" line of /proc/stat.
var StatCPUColumns = []string{"user", "nice", "system", "idle", "iowait", "irq", "softirq", "guest", "guest_nice"}

// StatKeys are the single-value lines of /proc/stat kept in Procstats.
var StatKeys = []string{"intr", "ctxt", "processes", "procs_blocked"}

// MeminfoField returns the schema field name for a /proc/meminfo key.
func MeminfoField(key string) string { return "meminfo_" + strings.ToLower(key) }

// Procstats holds node wide counters from /proc. All are plain replacements.
var Procstats = buildProcstats()

func buildProcstats() *counters.Schema {
	b := counters.NewSchemaBuilder("procstats_default").
		Counter("uptime_total", counters.UInt64, counters.Seconds, counters.None, "Uptime").
		Counter("uptime_idle", counters.UInt64, counters.Seconds, counters.None, "Idle time")

	for _, k := range MeminfoKeys {
		unit := counters.KBytes
		if strings.HasPrefix(k, "HugePages_") || k == "Hugepagesize" {
			unit = counters.Count
		}
		b.Counter(MeminfoField(k), counters.UInt64, unit, counters.None, "/proc/meminfo "+k)
	}
	for _, k := range VmstatKeys {
		b.Counter("vmstat_"+k, counters.UInt64, counters.Count, counters.None, "/proc/vmstat "+k)
	}
	for _, k := range StatCPUColumns {
		b.Counter("stat_cpu_"+k, counters.UInt64, counters.Raw, counters.None, "/proc/stat cpu "+k)
	}
	for _, k := range StatKeys {
		b.Counter("stat_"+k, counters.UInt64, counters.Raw, counters.None, "/proc/stat "+k)
	}

	return b.
		Counter("loadavg_1min", counters.Float32, counters.Raw, counters.None, "Load average over 1 minute").
		Counter("loadavg_5min", counters.Float32, counters.Raw, counters.None, "Load average over 5 minutes").
		Counter("loadavg_15min", counters.Float32, counters.Raw, counters.None, "Load average over 15 minutes").
		Counter("loadavg_runnable", counters.Float32, counters.Raw, counters.None, "Runnable scheduling entities").
		Counter("loadavg_total_threads", counters.Float32, counters.Raw, counters.None, "Scheduling entities").
		MustBuild()
}
