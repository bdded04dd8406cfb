package collecting

import (
	log "github.com/sirupsen/logrus"

	"colmet/pkg/config"
)

// Manager owns the enabled data sources.
type Manager struct {
	sources []DataSource
}

// NewManager opens every source enabled in cfg. A source that cannot start
// on this node is logged and left out.
func NewManager(cfg *config.NodeConfig) *Manager {
	m := &Manager{sources: make([]DataSource, 0, 6)}

	if cfg.EnableTaskstats {
		if s, err := NewTaskstats(); err != nil {
			log.Warnf("taskstats disabled: %v", err)
		} else {
			m.sources = append(m.sources, s)
		}
	}
	if cfg.EnableJobproc {
		m.sources = append(m.sources, NewJobproc(cfg.ProcRoot))
	}
	if cfg.EnableProcstats {
		m.sources = append(m.sources, NewProcstats(cfg.ProcRoot))
	}
	if cfg.EnableTemperature {
		m.sources = append(m.sources, NewTemperature(cfg.SysRoot))
	}
	if cfg.EnableRAPL {
		if s, err := NewRAPL(cfg.SysRoot); err != nil {
			log.Warnf("raplstats disabled: %v", err)
		} else {
			m.sources = append(m.sources, s)
		}
	}
	if cfg.EnableNvidia {
		if s := NewNvidia(); s != nil {
			m.sources = append(m.sources, s)
		}
	}

	log.Infof("Initialized %d data sources: %v", len(m.sources), m.Names())
	return m
}

// NewManagerWith wraps already opened sources.
func NewManagerWith(sources ...DataSource) *Manager {
	return &Manager{sources: sources}
}

func (m *Manager) Sources() []DataSource { return m.sources }

// ByLevel returns the sources sampling at level l.
func (m *Manager) ByLevel(l Level) []DataSource {
	var out []DataSource
	for _, s := range m.sources {
		if s.Level() == l {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) Names() []string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return names
}

func (m *Manager) Close() {
	for _, s := range m.sources {
		if err := s.Close(); err != nil {
			log.Errorf("Error closing data source %s: %v", s.Name(), err)
		}
	}
}
