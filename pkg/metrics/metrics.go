// Package metrics defines the record layouts produced by the node data
// sources.
package metrics

import "colmet/pkg/counters"

// All returns every built-in schema in registration order.
func All() []*counters.Schema {
	return []*counters.Schema{
		Taskstats,
		Procstats,
		Jobprocstats,
		Temperaturestats,
		RAPLstats,
		Nvidiastats,
	}
}

// Register adds every built-in schema to reg. It is called once at startup,
// before reg is sealed.
func Register(reg *counters.Registry) error {
	for _, s := range All() {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a sealed registry holding the built-in schemas.
func NewRegistry() (*counters.Registry, error) {
	reg := counters.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}
