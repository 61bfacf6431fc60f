// Package store persists patch meshes in a SQLite database.
package store

import (
	"fmt"
	"strconv"
)

// FormatVersion is written to the metadata of new stores.
const FormatVersion = "1"

// Metadata describes the planet a store was written from.
type Metadata struct {
	Name        string  // Human-readable planet name
	Description string  // Free text
	Version     string  // Store format version
	Seed        int64   // Noise seed
	Radius      float64 // Planet radius
	MaxDepth    int     // Deepest patch depth written
	Config      string  // Effective configuration as YAML
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	result["seed"] = strconv.FormatInt(m.Seed, 10)
	if m.Radius > 0 {
		result["radius"] = strconv.FormatFloat(m.Radius, 'g', -1, 64)
	}
	result["max_depth"] = fmt.Sprintf("%d", m.MaxDepth)
	if m.Config != "" {
		result["config"] = m.Config
	}

	return result
}

func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Description: values["description"],
		Version:     values["version"],
		Config:      values["config"],
	}
	if v, ok := values["seed"]; ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.Seed = i
		}
	}
	if v, ok := values["radius"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			meta.Radius = f
		}
	}
	if v, ok := values["max_depth"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.MaxDepth = i
		}
	}
	return meta
}
