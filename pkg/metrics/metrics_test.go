package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colmet/pkg/counters"
)

func TestRegister(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"jobprocstats_default",
		"nvidiastats_default",
		"procstats_default",
		"raplstats_default",
		"taskstats_default",
		"temperaturestats_default",
	}, reg.Names())

	assert.ErrorIs(t, Register(reg), counters.ErrRegistrySealed)

	again := counters.NewRegistry()
	require.NoError(t, again.Register(Taskstats))
	assert.ErrorIs(t, Register(again), counters.ErrDuplicateSchema)
}

func TestTaskstatsLayout(t *testing.T) {
	f, ok := Taskstats.Field("cpu_delay_total")
	require.True(t, ok)
	assert.Equal(t, counters.Add, f.Rule)
	assert.Equal(t, 8, f.Type.Width())

	f, ok = Taskstats.Field("ac_btime")
	require.True(t, ok)
	assert.Equal(t, counters.Min, f.Rule)
	assert.Equal(t, 4, f.Type.Width())

	for _, c := range Taskstats.Counters() {
		off, ok := TaskstatsOffsets[c.Name]
		require.True(t, ok, c.Name)
		assert.LessOrEqual(t, off+c.Type.Width(), TaskstatsMinSize, c.Name)
	}
	assert.Len(t, TaskstatsOffsets, len(Taskstats.Counters()))
}

func TestProcstatsFields(t *testing.T) {
	for _, name := range []string{"uptime_total", "meminfo_memtotal", "meminfo_hugepages_total",
		"meminfo_committed_as", "vmstat_pgfault", "stat_cpu_guest_nice", "stat_procs_blocked", "loadavg_15min"} {
		f, ok := Procstats.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, counters.None, f.Rule, name)
	}
	f, _ := Procstats.Field("meminfo_hugepagesize")
	assert.Equal(t, counters.Count, f.Unit)
}

func TestNodeSchemas(t *testing.T) {
	assert.Len(t, Jobprocstats.Counters(), len(ProcIOKeys))
	assert.Len(t, Temperaturestats.Counters(), ThermalZones)

	_, ok := Temperaturestats.Field(TemperatureField(ThermalZones - 1))
	assert.True(t, ok)

	for _, s := range All() {
		assert.LessOrEqual(t, len(s.Name()), counters.NameWidth, s.Name())
		assert.Greater(t, s.Len(), 2*counters.NameWidth+16, s.Name())
	}
}
