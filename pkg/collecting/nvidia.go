package collecting

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

// Nvidia samples every GPU visible through NVML and folds them into one
// node record.
type Nvidia struct {
	initialized bool
	devices     []nvml.Device
}

// NewNvidia returns nil when NVML is unavailable, so nodes without GPUs run
// with the source disabled.
func NewNvidia() *Nvidia {
	n := &Nvidia{}
	if err := n.init(); err != nil {
		log.Warnf("nvidiastats disabled: %v", err)
		return nil
	}
	return n
}

func (n *Nvidia) Name() string             { return "nvidiastats" }
func (n *Nvidia) Schema() *counters.Schema { return metrics.Nvidiastats }
func (n *Nvidia) Level() Level             { return NodeLevel }

func (n *Nvidia) init() error {
	if n.initialized {
		return nil
	}
	if ret := nvml.Init(); !errors.Is(ret, nvml.SUCCESS) {
		return fmt.Errorf("failed to initialize NVML: %s", nvml.ErrorString(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if !errors.Is(ret, nvml.SUCCESS) || count == 0 {
		nvml.Shutdown()
		return fmt.Errorf("no NVIDIA devices found")
	}

	n.devices = make([]nvml.Device, 0, count)
	for i := 0; i < count; i++ {
		if d, ret := nvml.DeviceGetHandleByIndex(i); errors.Is(ret, nvml.SUCCESS) {
			n.devices = append(n.devices, d)
		}
	}

	n.initialized = true
	return nil
}

func (n *Nvidia) Close() error {
	if n.initialized {
		nvml.Shutdown()
		n.initialized = false
	}
	return nil
}

// gpuSample is what one device contributes to the node record. A nil field
// was not readable.
type gpuSample struct {
	power, memTotal, memFree, memUsed *uint64
	temperature                       *int64
	utilGPU, utilMem                  *uint32
}

func capture[T any](call func() (T, nvml.Return), dst **T) bool {
	if val, ret := call(); errors.Is(ret, nvml.SUCCESS) {
		*dst = &val
		return true
	}
	return false
}

func sampleDevice(device nvml.Device) gpuSample {
	var s gpuSample

	var power *uint32
	if capture(device.GetPowerUsage, &power) {
		v := uint64(*power)
		s.power = &v
	}

	var temp *uint32
	if capture(func() (uint32, nvml.Return) { return device.GetTemperature(nvml.TEMPERATURE_GPU) }, &temp) {
		v := int64(*temp)
		s.temperature = &v
	}

	if util, ret := device.GetUtilizationRates(); errors.Is(ret, nvml.SUCCESS) {
		g, m := util.Gpu, util.Memory
		s.utilGPU, s.utilMem = &g, &m
	}

	if mem, ret := device.GetMemoryInfo(); errors.Is(ret, nvml.SUCCESS) {
		t, f, u := mem.Total, mem.Free, mem.Used
		s.memTotal, s.memFree, s.memUsed = &t, &f, &u
	}
	return s
}

func (n *Nvidia) Fetch(Handle) *counters.Unpacked {
	if !n.initialized {
		return nil
	}
	samples := make([]gpuSample, 0, len(n.devices))
	for _, d := range n.devices {
		samples = append(samples, sampleDevice(d))
	}
	return foldGPUs(samples)
}

// foldGPUs sums power and memory and keeps the maximum temperature and
// utilization across devices.
func foldGPUs(samples []gpuSample) *counters.Unpacked {
	r := counters.Empty(metrics.Nvidiastats)
	sums := map[string]uint64{}
	maxes := map[string]uint64{}
	var temp *int64
	seen := 0

	for _, s := range samples {
		ok := false
		for name, v := range map[string]*uint64{
			"power": s.power, "memory_total": s.memTotal, "memory_free": s.memFree, "memory_used": s.memUsed,
		} {
			if v != nil {
				sums[name] += *v
				ok = true
			}
		}
		for name, v := range map[string]*uint32{"utilization_gpu": s.utilGPU, "utilization_memory": s.utilMem} {
			if v != nil {
				maxes[name] = max(maxes[name], uint64(*v))
				ok = true
			}
		}
		if s.temperature != nil {
			if temp == nil || *s.temperature > *temp {
				temp = s.temperature
			}
			ok = true
		}
		if ok {
			seen++
		}
	}
	if seen == 0 {
		return nil
	}

	for name, v := range sums {
		set("nvidiastats", r, name, v)
	}
	for name, v := range maxes {
		set("nvidiastats", r, name, v)
	}
	if temp != nil {
		set("nvidiastats", r, "temperature", *temp)
	}
	set("nvidiastats", r, "devices", seen)
	return r
}
