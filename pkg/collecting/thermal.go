package collecting

import (
	"strconv"

	"github.com/prometheus/procfs/sysfs"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

// Temperature samples the first thermal zones in degrees Celsius.
type Temperature struct {
	fs  sysfs.FS
	err error
}

// NewTemperature logs the zone type behind each counter so the numbered
// counters can be mapped back to sensors.
func NewTemperature(sysRoot string) *Temperature {
	if sysRoot == "" {
		sysRoot = defaultSysRoot
	}
	fs, err := sysfs.NewFS(sysRoot)
	t := &Temperature{fs: fs, err: err}
	kinds := make([]string, metrics.ThermalZones)
	for i := range kinds {
		kinds[i] = "absent"
	}
	for i, z := range t.zones() {
		kinds[i] = z.Type
	}
	for i, kind := range kinds {
		log.Infof("temperaturestats: %s is %s", metrics.TemperatureField(i), kind)
	}
	return t
}

func (t *Temperature) Name() string             { return "temperaturestats" }
func (t *Temperature) Schema() *counters.Schema { return metrics.Temperaturestats }
func (t *Temperature) Level() Level             { return NodeLevel }
func (t *Temperature) Close() error             { return nil }

// zones maps each sampled zone number to its current reading.
func (t *Temperature) zones() map[int]sysfs.ClassThermalZoneStats {
	if t.err != nil {
		log.Debugf("temperaturestats: %v", t.err)
		return nil
	}
	stats, err := t.fs.ClassThermalZoneStats()
	if err != nil {
		log.Debugf("temperaturestats: %v", err)
		return nil
	}
	out := make(map[int]sysfs.ClassThermalZoneStats, len(stats))
	for _, z := range stats {
		i, err := strconv.Atoi(z.Name)
		if err != nil || i >= metrics.ThermalZones {
			continue
		}
		out[i] = z
	}
	return out
}

func (t *Temperature) Fetch(Handle) *counters.Unpacked {
	zones := t.zones()
	if len(zones) == 0 {
		return nil
	}
	r := counters.Empty(metrics.Temperaturestats)
	for i, z := range zones {
		set(t.Name(), r, metrics.TemperatureField(i), z.Temp/millidegrees)
	}
	return r
}
