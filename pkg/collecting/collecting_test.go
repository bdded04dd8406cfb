package collecting

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdlayher/netlink"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// ============================================================================
// /proc and /sys sources
// ============================================================================

func TestProcstats(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"uptime":  "3605.27 7021.12\n",
		"meminfo": "MemTotal:       16314736 kB\nMemFree:         9024420 kB\nHugePages_Total:       4\n",
		"vmstat":  "nr_free_pages 2256105\npgfault 123456\npgmajfault 789\n",
		"stat": "cpu  100 2 30 4000 5 0 6 0 0 0\ncpu0 50 1 15 2000 2 0 3 0 0 0\n" +
			"intr 999 1 2 3\nctxt 4242\nbtime 1700000000\nprocesses 777\nprocs_running 2\nprocs_blocked 1\n",
		"loadavg": "0.52 0.58 0.59 3/1024 12345\n",
	})

	src := NewProcstats(root)
	assert.Equal(t, NodeLevel, src.Level())
	r := src.Fetch(NodeHandle)
	require.NotNil(t, r)

	assert.Equal(t, uint64(3605), r.Value("uptime_total"))
	assert.Equal(t, uint64(7021), r.Value("uptime_idle"))
	assert.Equal(t, uint64(16314736), r.Value("meminfo_memtotal"))
	assert.Equal(t, uint64(4), r.Value("meminfo_hugepages_total"))
	assert.Nil(t, r.Value("meminfo_dirty"))
	assert.Equal(t, uint64(123456), r.Value("vmstat_pgfault"))
	assert.Nil(t, r.Value("vmstat_nr_free_pages"))
	assert.Equal(t, uint64(100), r.Value("stat_cpu_user"))
	assert.Equal(t, uint64(4000), r.Value("stat_cpu_idle"))
	assert.Equal(t, uint64(999), r.Value("stat_intr"))
	assert.Equal(t, uint64(4242), r.Value("stat_ctxt"))
	assert.Equal(t, uint64(1), r.Value("stat_procs_blocked"))
	assert.InDelta(t, 0.52, r.Value("loadavg_1min"), 1e-6)
	assert.Equal(t, float64(3), r.Value("loadavg_runnable"))
	assert.Equal(t, float64(1024), r.Value("loadavg_total_threads"))
}

func TestProcstatsUnreadable(t *testing.T) {
	assert.Nil(t, NewProcstats(filepath.Join(t.TempDir(), "missing")).Fetch(NodeHandle))
}

func TestJobproc(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"42/io": "rchar: 1000\nwchar: 200\nsyscr: 30\nsyscw: 4\nread_bytes: 4096\nwrite_bytes: 8192\ncancelled_write_bytes: 0\n",
	})

	src := NewJobproc(root)
	assert.Equal(t, TaskLevel, src.Level())

	r := src.Fetch(42)
	require.NotNil(t, r)
	assert.Equal(t, uint64(1000), r.Value("rchar"))
	assert.Equal(t, uint64(8192), r.Value("write_bytes"))
	assert.Equal(t, uint64(0), r.Value("cancelled_write_bytes"))

	assert.Nil(t, src.Fetch(43), "vanished task")
}

func TestTemperature(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"class/thermal/thermal_zone0/type":   "x86_pkg_temp\n",
		"class/thermal/thermal_zone0/policy": "step_wise\n",
		"class/thermal/thermal_zone0/temp":   "54000\n",
		"class/thermal/thermal_zone2/type":   "acpitz\n",
		"class/thermal/thermal_zone2/policy": "step_wise\n",
		"class/thermal/thermal_zone2/temp":   "-5000\n",
		"class/thermal/thermal_zone9/type":   "iwlwifi\n",
		"class/thermal/thermal_zone9/policy": "step_wise\n",
		"class/thermal/thermal_zone9/temp":   "40000\n",
	})

	r := NewTemperature(root).Fetch(NodeHandle)
	require.NotNil(t, r)
	assert.Equal(t, int64(54), r.Value(metrics.TemperatureField(0)))
	assert.Nil(t, r.Value(metrics.TemperatureField(1)))
	assert.Equal(t, int64(-5), r.Value(metrics.TemperatureField(2)))

	assert.Nil(t, NewTemperature(t.TempDir()).Fetch(NodeHandle))
}

func raplTree(t *testing.T, pkg0, pkg1 string) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"class/powercap/intel-rapl:0/name":                  "package-0\n",
		"class/powercap/intel-rapl:0/energy_uj":             pkg0,
		"class/powercap/intel-rapl:0/max_energy_range_uj":   "2000\n",
		"class/powercap/intel-rapl:1/name":                  "package-1\n",
		"class/powercap/intel-rapl:1/energy_uj":             pkg1,
		"class/powercap/intel-rapl:1/max_energy_range_uj":   "262143328850\n",
		"class/powercap/intel-rapl:0:0/name":                "core\n",
		"class/powercap/intel-rapl:0:0/energy_uj":           "77\n",
		"class/powercap/intel-rapl:0:0/max_energy_range_uj": "262143328850\n",
	})
	return root
}

func TestRAPL(t *testing.T) {
	root := raplTree(t, "1000\n", "500\n")

	src, err := NewRAPL(root)
	require.NoError(t, err)
	r := src.Fetch(NodeHandle)
	require.NotNil(t, r)
	assert.Equal(t, uint64(1500), r.Value("energy_uj"))
	assert.Equal(t, uint64(2000+262143328850), r.Value("max_energy_range_uj"))
	assert.Equal(t, uint64(2), r.Value("packages"))

	_, err = NewRAPL(t.TempDir())
	assert.Error(t, err)
}

func TestRAPLWrap(t *testing.T) {
	root := raplTree(t, "1000\n", "500\n")
	src, err := NewRAPL(root)
	require.NoError(t, err)
	first := src.Fetch(NodeHandle)
	require.NotNil(t, first)

	// package 0 wraps at 2000: 1000 -> 1990 -> 10 is 1010 uJ consumed
	for _, e := range []string{"1990\n", "10\n"} {
		writeTree(t, root, map[string]string{"class/powercap/intel-rapl:0/energy_uj": e})
		second := src.Fetch(NodeHandle)
		require.NotNil(t, second)
		d := second.Clone()
		require.NoError(t, counters.Delta(second, first, d))
		assert.Less(t, d.Value("energy_uj").(uint64), uint64(2000), "delta after reading %q", e)
		first = second
	}
	assert.Equal(t, uint64(1000+1010+500), first.Value("energy_uj"))
}

func TestRAPLPackageAdvance(t *testing.T) {
	p := &raplPackage{}
	p.zone.MaxMicrojoules = 100
	for _, e := range []uint64{40, 90, 5, 5, 60} {
		p.advance(e)
	}
	// 40, +50, +15 (wrap), +0, +55
	assert.Equal(t, uint64(160), p.total)
}

func TestFoldGPUs(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }
	u32 := func(v uint32) *uint32 { return &v }
	i := func(v int64) *int64 { return &v }

	r := foldGPUs([]gpuSample{
		{power: u(250000), memTotal: u(80), memUsed: u(10), memFree: u(70), temperature: i(61), utilGPU: u32(90), utilMem: u32(40)},
		{power: u(100000), memTotal: u(80), memUsed: u(30), memFree: u(50), temperature: i(70), utilGPU: u32(20), utilMem: u32(55)},
		{},
	})
	require.NotNil(t, r)
	assert.Equal(t, uint64(350000), r.Value("power"))
	assert.Equal(t, uint64(160), r.Value("memory_total"))
	assert.Equal(t, uint64(40), r.Value("memory_used"))
	assert.Equal(t, int64(70), r.Value("temperature"))
	assert.Equal(t, uint64(90), r.Value("utilization_gpu"))
	assert.Equal(t, uint64(55), r.Value("utilization_memory"))
	assert.Equal(t, uint64(2), r.Value("devices"))

	assert.Nil(t, foldGPUs([]gpuSample{{}}))
}

func TestSetLogsRefusedValues(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	r := counters.Empty(metrics.RAPLstats)
	set("raplstats", r, "packages", 2)
	assert.Empty(t, hook.AllEntries())
	assert.Equal(t, uint64(2), r.Value("packages"))

	set("raplstats", r, "no_such_counter", 1)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.DebugLevel, entry.Level)
	assert.Contains(t, entry.Message, "raplstats: no_such_counter")
}

// ============================================================================
// Netlink
// ============================================================================

func TestStatsPayload(t *testing.T) {
	stats := make([]byte, metrics.TaskstatsMinSize)
	binary.NativeEndian.PutUint64(stats[24:], 250)

	ae := netlink.NewAttributeEncoder()
	ae.Nested(unix.TASKSTATS_TYPE_AGGR_PID, func(nae *netlink.AttributeEncoder) error {
		nae.Uint32(unix.TASKSTATS_TYPE_PID, 42)
		nae.Bytes(unix.TASKSTATS_TYPE_STATS, stats)
		return nil
	})
	b, err := ae.Encode()
	require.NoError(t, err)

	payload, err := statsPayload(b)
	require.NoError(t, err)
	assert.Equal(t, stats, payload)
	assert.Equal(t, uint64(250), decodeTaskstats(payload).Value("cpu_delay_total"))

	ae = netlink.NewAttributeEncoder()
	ae.Uint32(unix.TASKSTATS_TYPE_PID, 42)
	b, err = ae.Encode()
	require.NoError(t, err)
	payload, err = statsPayload(b)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDecodeTaskstats(t *testing.T) {
	payload := make([]byte, metrics.TaskstatsMinSize)
	binary.NativeEndian.PutUint64(payload[24:], 250)
	binary.NativeEndian.PutUint32(payload[136:], 1700000000)
	binary.NativeEndian.PutUint64(payload[320:], 9)

	r := decodeTaskstats(payload)
	assert.Equal(t, uint64(250), r.Value("cpu_delay_total"))
	assert.Equal(t, uint64(1700000000), r.Value("ac_btime"))
	assert.Equal(t, uint64(9), r.Value("freepages_delay_total"))

	short := decodeTaskstats(payload[:312])
	assert.Equal(t, uint64(250), short.Value("cpu_delay_total"))
	assert.Nil(t, short.Value("freepages_count"))
}
