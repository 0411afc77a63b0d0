package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// RegionConfig names one snapshot region to poll.
type RegionConfig struct {
	// Name identifies the region in the API and metrics. Defaults to the
	// file's base name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Path is the region file written by the producer.
	Path string `json:"path" yaml:"path"`
	// Mapped selects the memory-mapped provider instead of re-reading
	// the file on every poll.
	Mapped bool `json:"mapped,omitempty" yaml:"mapped,omitempty"`
}

// Options configures server creation.
type Options struct {
	Regions      []RegionConfig
	PollInterval time.Duration
	// MaxAge bounds snapshot staleness for the check endpoint. Zero
	// disables the freshness check.
	MaxAge time.Duration
}

func (o *Options) validate() error {
	if len(o.Regions) == 0 {
		return errors.New("no regions configured")
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	seen := make(map[string]bool, len(o.Regions))
	for i := range o.Regions {
		r := &o.Regions[i]
		r.Path = strings.TrimSpace(r.Path)
		if r.Path == "" {
			return fmt.Errorf("region %d: missing path", i)
		}
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = filepath.Base(r.Path)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate region name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}
