package state

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sergeygrin4/fb-job-parser-service/internal/components"
	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
	"github.com/sergeygrin4/fb-job-parser-service/internal/core"
)

// State is everything the loader assembled for one process.
type State struct {
	Config   *config.Config
	Registry *components.Registry
	Metrics  *prometheus.Registry
	Pipeline *core.Pipeline
	Bot      *core.Bot
}

func NewState(cfg *config.Config, registry *components.Registry, metrics *prometheus.Registry) *State {
	return &State{
		Config:   cfg,
		Registry: registry,
		Metrics:  metrics,
	}
}

// Storage returns the journal component, or nil when the journal is disabled.
func (s *State) Storage() *components.StorageComponent {
	c, ok := s.Registry.Get(components.StorageComponentName)
	if !ok {
		return nil
	}
	return c.(*components.StorageComponent)
}

func (s *State) Server() *components.ServerComponent {
	c, ok := s.Registry.Get(components.ServerComponentName)
	if !ok {
		return nil
	}
	return c.(*components.ServerComponent)
}
