package collecting

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/procfs/sysfs"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

// RAPL samples the package energy counters exposed by the powercap driver.
// Each package counter wraps at its own max_energy_range_uj; RAPL unrolls
// the wraps so energy_uj only grows.
type RAPL struct {
	packages []*raplPackage
}

type raplPackage struct {
	zone sysfs.RaplZone
	last uint64
	// total is the unwrapped counter: the first reading plus every
	// increment since.
	total uint64
	seen  bool
}

// advance folds a new reading into the unwrapped total.
func (p *raplPackage) advance(e uint64) {
	switch {
	case !p.seen:
		p.total = e
		p.seen = true
	case e >= p.last:
		p.total += e - p.last
	default:
		p.total += e + p.zone.MaxMicrojoules - p.last
	}
	p.last = e
}

// NewRAPL fails when no package domain is readable.
func NewRAPL(sysRoot string) (*RAPL, error) {
	if sysRoot == "" {
		sysRoot = defaultSysRoot
	}
	fs, err := sysfs.NewFS(sysRoot)
	if err != nil {
		return nil, fmt.Errorf("rapl: %w", err)
	}
	zones, err := sysfs.GetRaplZones(fs)
	if err != nil {
		return nil, fmt.Errorf("rapl: %w", err)
	}

	r := &RAPL{}
	for _, z := range zones {
		// intel-rapl:0 is a package, intel-rapl:0:0 one of its subzones
		if z.Name != raplPackageZone || strings.Count(filepath.Base(z.Path), ":") != 1 {
			continue
		}
		if _, err := z.GetEnergyMicrojoules(); err != nil {
			log.Debugf("rapl: skipping %s: %v", z.Path, err)
			continue
		}
		r.packages = append(r.packages, &raplPackage{zone: z})
	}
	if len(r.packages) == 0 {
		return nil, fmt.Errorf("rapl: no readable package domain under %s", filepath.Join(sysRoot, powercapDir))
	}
	sort.Slice(r.packages, func(i, j int) bool { return r.packages[i].zone.Path < r.packages[j].zone.Path })
	return r, nil
}

func (r *RAPL) Name() string             { return "raplstats" }
func (r *RAPL) Schema() *counters.Schema { return metrics.RAPLstats }
func (r *RAPL) Level() Level             { return NodeLevel }
func (r *RAPL) Close() error             { return nil }

func (r *RAPL) Fetch(Handle) *counters.Unpacked {
	var energy, maxRange uint64
	n := 0
	for _, pkg := range r.packages {
		e, err := pkg.zone.GetEnergyMicrojoules()
		if err != nil {
			log.Debugf("rapl: %v", err)
			continue
		}
		pkg.advance(e)
		energy += pkg.total
		maxRange += pkg.zone.MaxMicrojoules
		n++
	}
	if n == 0 {
		return nil
	}

	rec := counters.Empty(metrics.RAPLstats)
	set(r.Name(), rec, "energy_uj", energy)
	set(r.Name(), rec, "max_energy_range_uj", maxRange)
	set(r.Name(), rec, "packages", n)
	return rec
}
