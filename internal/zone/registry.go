// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zone

import (
	"fmt"
	"sort"
)

// Registry is an immutable zone-to-camera lookup built from a validated
// mapping. Construct a new Registry to change assignments; readers may share
// one instance freely across goroutines.
type Registry struct {
	byZone map[Zone]string
}

// NewRegistry builds a registry from zone names to device paths. Unknown zone
// names and empty device paths are rejected.
func NewRegistry(mapping map[string]string) (*Registry, error) {
	byZone := make(map[Zone]string, len(mapping))
	for name, device := range mapping {
		z, ok := Parse(name)
		if !ok {
			return nil, fmt.Errorf("unknown zone %q", name)
		}
		if device == "" {
			return nil, fmt.Errorf("zone %s: empty device path", z)
		}
		if prev, dup := byZone[z]; dup {
			return nil, fmt.Errorf("zone %s mapped twice (%s, %s)", z, prev, device)
		}
		byZone[z] = device
	}
	return &Registry{byZone: byZone}, nil
}

// CameraFor returns the device path assigned to the zone. The boolean is
// false when the zone has no camera configured.
func (r *Registry) CameraFor(z Zone) (string, bool) {
	if r == nil {
		return "", false
	}
	device, ok := r.byZone[z]
	return device, ok
}

// Zones returns the configured zones in a stable order.
func (r *Registry) Zones() []Zone {
	if r == nil {
		return nil
	}
	zones := make([]Zone, 0, len(r.byZone))
	for z := range r.byZone {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones
}

// Len returns the number of configured zones.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byZone)
}

// MissingDevices returns the zones whose assigned device does not appear in
// the given set of available device paths. An empty result means every
// configured zone can record.
func (r *Registry) MissingDevices(available []string) []Zone {
	if r == nil {
		return nil
	}
	known := make(map[string]struct{}, len(available))
	for _, d := range available {
		known[d] = struct{}{}
	}
	var missing []Zone
	for _, z := range r.Zones() {
		if _, ok := known[r.byZone[z]]; !ok {
			missing = append(missing, z)
		}
	}
	return missing
}
