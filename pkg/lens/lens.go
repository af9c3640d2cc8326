// Package lens focuses a reactor graph on selected projects for display.
package lens

import "github.com/ritzau/pomreactor/pkg/model"

// Infinite is the distance of a project not connected to the selection
const Infinite = -1

// Config defines which projects and edges of a reactor graph are shown
type Config struct {
	Name string `json:"name"`
	// MaxDistance hides projects further than this from the selection;
	// Infinite shows every project
	MaxDistance int `json:"maxDistance"`
	// EdgeTypes lists the edge types to follow and show; empty means all
	EdgeTypes []model.EdgeType `json:"edgeTypes,omitempty"`
	// Packagings lists the packagings to show; empty means all
	Packagings  []string `json:"packagings,omitempty"`
	HideDropped bool     `json:"hideDropped,omitempty"`
}

// DefaultConfig shows the whole reactor
func DefaultConfig() *Config {
	return &Config{Name: "default", MaxDistance: Infinite}
}

func (c *Config) followsEdge(e *model.Edge) bool {
	if c.HideDropped && e.Dropped {
		return false
	}
	if len(c.EdgeTypes) == 0 {
		return true
	}
	for _, t := range c.EdgeTypes {
		if t == e.Type {
			return true
		}
	}
	return false
}

func (c *Config) showsPackaging(packaging string) bool {
	if len(c.Packagings) == 0 {
		return true
	}
	for _, p := range c.Packagings {
		if p == packaging {
			return true
		}
	}
	return false
}

func (c *Config) withinDistance(d int) bool {
	if c.MaxDistance == Infinite {
		return true
	}
	return d != Infinite && d <= c.MaxDistance
}
