package metrics

import (
	"fmt"

	"colmet/pkg/counters"
)

// ProcIOKeys are the /proc/<tid>/io entries summed over a job's tasks.
var ProcIOKeys = []string{"rchar", "wchar", "syscr", "syscw", "read_bytes", "write_bytes", "cancelled_write_bytes"}

var Jobprocstats = buildJobprocstats()

func buildJobprocstats() *counters.Schema {
	b := counters.NewSchemaBuilder("jobprocstats_default")
	for _, k := range ProcIOKeys {
		unit := counters.Bytes
		if k == "syscr" || k == "syscw" {
			unit = counters.Count
		}
		b.Counter(k, counters.UInt64, unit, counters.Add, "/proc/<tid>/io "+k)
	}
	return b.MustBuild()
}

// ThermalZones is the number of /sys/class/thermal zones sampled.
const ThermalZones = 6

// TemperatureField names the counter for thermal zone i.
func TemperatureField(i int) string { return fmt.Sprintf("counter_%d", i+1) }

var Temperaturestats = buildTemperaturestats()

func buildTemperaturestats() *counters.Schema {
	b := counters.NewSchemaBuilder("temperaturestats_default")
	for i := 0; i < ThermalZones; i++ {
		b.Counter(TemperatureField(i), counters.Int64, counters.Temperature, counters.Max,
			fmt.Sprintf("thermal_zone%d", i))
	}
	return b.MustBuild()
}

// RAPLstats sums the energy counters of every intel-rapl package domain.
var RAPLstats = counters.NewSchemaBuilder("raplstats_default").
	Counter("energy_uj", counters.UInt64, counters.Count, counters.Add, "Energy counter [uJ]").
	Counter("max_energy_range_uj", counters.UInt64, counters.Count, counters.None, "Energy counter range [uJ]").
	Counter("packages", counters.UInt16, counters.Count, counters.None, "RAPL package domains").
	MustBuild()

// Nvidiastats aggregates every visible GPU: power and memory are summed,
// temperature and utilization keep the hottest and busiest device.
var Nvidiastats = counters.NewSchemaBuilder("nvidiastats_default").
	Counter("power", counters.UInt64, counters.Raw, counters.None, "Power draw [mW]").
	Counter("temperature", counters.Int64, counters.Temperature, counters.Max, "GPU temperature").
	Counter("utilization_gpu", counters.UInt32, counters.Raw, counters.Max, "GPU utilization [%]").
	Counter("utilization_memory", counters.UInt32, counters.Raw, counters.Max, "Memory utilization [%]").
	Counter("memory_total", counters.UInt64, counters.Bytes, counters.None, "Memory total").
	Counter("memory_free", counters.UInt64, counters.Bytes, counters.None, "Memory free").
	Counter("memory_used", counters.UInt64, counters.Bytes, counters.None, "Memory used").
	Counter("devices", counters.UInt16, counters.Count, counters.None, "Visible devices").
	MustBuild()
