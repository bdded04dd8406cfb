package metrics

import "colmet/pkg/counters"

// Taskstats holds the per-task delay and accounting counters reported by the
// kernel taskstats interface (struct taskstats, version 8 and later).
var Taskstats = counters.NewSchemaBuilder("taskstats_default").
	Counter("cpu_count", counters.UInt64, counters.Count, counters.Add, "Nb of cpu delay values recorded").
	Counter("cpu_delay_total", counters.UInt64, counters.Nanos, counters.Add, "Total of cumulative cpu delay").
	Counter("blkio_count", counters.UInt64, counters.Count, counters.Add, "Nb of block I/O delay values recorded").
	Counter("blkio_delay_total", counters.UInt64, counters.Nanos, counters.Add, "Total of cumulative block I/O delay").
	Counter("swapin_count", counters.UInt64, counters.Count, counters.Add, "Nb of swapin delay values recorded").
	Counter("swapin_delay_total", counters.UInt64, counters.Nanos, counters.Add, "Total of cumulative swapin delay").
	Counter("cpu_run_real_total", counters.UInt64, counters.Nanos, counters.Add, "Total of cumulative cpu run real").
	Counter("cpu_run_virtual_total", counters.UInt64, counters.Nanos, counters.Add, "Total of cumulative cpu run virtual").
	Counter("ac_btime", counters.UInt32, counters.Date, counters.Min, "Begin time").
	Counter("ac_etime", counters.UInt64, counters.Micros, counters.Max, "Elapsed time").
	Counter("ac_utime", counters.UInt64, counters.Micros, counters.Add, "User CPU time").
	Counter("ac_stime", counters.UInt64, counters.Micros, counters.Add, "System CPU time").
	Counter("ac_minflt", counters.UInt64, counters.Count, counters.Add, "Minor page fault count").
	Counter("ac_majflt", counters.UInt64, counters.Count, counters.Add, "Major page fault count").
	Counter("coremem", counters.UInt64, counters.MBytesMicro, counters.Add, "Accumulated RSS usage").
	Counter("virtmem", counters.UInt64, counters.MBytesMicro, counters.Add, "Accumulated VM usage").
	Counter("read_char", counters.UInt64, counters.Bytes, counters.Add, "Bytes read").
	Counter("write_char", counters.UInt64, counters.Bytes, counters.Add, "Bytes written").
	Counter("read_syscalls", counters.UInt64, counters.Count, counters.Add, "Read syscalls").
	Counter("write_syscalls", counters.UInt64, counters.Count, counters.Add, "Write syscalls").
	Counter("read_bytes", counters.UInt64, counters.Bytes, counters.Add, "Read I/O").
	Counter("write_bytes", counters.UInt64, counters.Bytes, counters.Add, "Write I/O").
	Counter("cancelled_write_bytes", counters.UInt64, counters.Bytes, counters.Add, "Cancelled write I/O").
	Counter("nvcsw", counters.UInt64, counters.Count, counters.Add, "Voluntary context switches").
	Counter("nivcsw", counters.UInt64, counters.Count, counters.Add, "Non-voluntary context switches").
	Counter("ac_utimescaled", counters.UInt64, counters.Micros, counters.Add, "User CPU time scaled on frequency").
	Counter("ac_stimescaled", counters.UInt64, counters.Micros, counters.Add, "System CPU time scaled on frequency").
	Counter("cpu_scaled_run_real_total", counters.UInt64, counters.Nanos, counters.Add, "CPU run real total scaled on frequency").
	Counter("freepages_count", counters.UInt64, counters.Count, counters.Add, "Nb of freepages delay values recorded").
	Counter("freepages_delay_total", counters.UInt64, counters.Nanos, counters.Add, "Total of cumulative freepages delay").
	MustBuild()

// TaskstatsOffsets locates each Taskstats counter inside the kernel's
// struct taskstats payload.
var TaskstatsOffsets = map[string]int{
	"cpu_count":                 16,
	"cpu_delay_total":           24,
	"blkio_count":               32,
	"blkio_delay_total":         40,
	"swapin_count":              48,
	"swapin_delay_total":        56,
	"cpu_run_real_total":        64,
	"cpu_run_virtual_total":     72,
	"ac_btime":                  136,
	"ac_etime":                  144,
	"ac_utime":                  152,
	"ac_stime":                  160,
	"ac_minflt":                 168,
	"ac_majflt":                 176,
	"coremem":                   184,
	"virtmem":                   192,
	"read_char":                 216,
	"write_char":                224,
	"read_syscalls":             232,
	"write_syscalls":            240,
	"read_bytes":                248,
	"write_bytes":               256,
	"cancelled_write_bytes":     264,
	"nvcsw":                     272,
	"nivcsw":                    280,
	"ac_utimescaled":            288,
	"ac_stimescaled":            296,
	"cpu_scaled_run_real_total": 304,
	"freepages_count":           312,
	"freepages_delay_total":     320,
}

// TaskstatsMinSize is the smallest kernel payload that covers every offset.
const TaskstatsMinSize = 328
