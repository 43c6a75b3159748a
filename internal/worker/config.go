// Package worker warms the shared route cache from Pub/Sub jobs.
package worker

import (
	"sort"
	"time"
)

// Trip is an origin/destination pair whose routes should stay cached.
type Trip struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	// Priority orders warming (lower first). Zero sorts first.
	Priority int `json:"priority,omitempty"`
}

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// Trips are warmed when a job names none. If empty, DefaultWarmTrips is used.
	Trips []Trip

	// Concurrency bounds parallel route searches (default: 3). Each search
	// makes up to four Directions calls.
	Concurrency int

	// Timeout bounds each trip's search (default: 30 seconds).
	Timeout time.Duration

	// PurgeOlderThan removes shared cache rows older than this on cache_purge
	// jobs (default: 24 hours).
	PurgeOlderThan time.Duration
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Trips:          DefaultWarmTrips(),
		Concurrency:    3,
		Timeout:        30 * time.Second,
		PurgeOlderThan: 24 * time.Hour,
	}
}

// DefaultWarmTrips are the busiest intercity and airport trips in Saudi Arabia.
func DefaultWarmTrips() []Trip {
	return []Trip{
		{Origin: "Jeddah", Destination: "Riyadh", Priority: 1},
		{Origin: "Riyadh", Destination: "Jeddah", Priority: 1},
		{Origin: "Riyadh", Destination: "Dammam", Priority: 1},
		{Origin: "Jeddah", Destination: "Makkah", Priority: 1},
		{Origin: "Makkah", Destination: "Madinah", Priority: 2},
		{Origin: "Dammam", Destination: "Al Khobar", Priority: 2},
		{Origin: "King Khalid International Airport", Destination: "Riyadh", Priority: 2},
		{Origin: "King Abdulaziz International Airport", Destination: "Jeddah", Priority: 2},
		{Origin: "Riyadh", Destination: "Buraydah", Priority: 3},
		{Origin: "Abha", Destination: "Khamis Mushait", Priority: 3},
	}
}

func (c WarmConfig) withDefaults() WarmConfig {
	def := DefaultWarmConfig()
	if len(c.Trips) == 0 {
		c.Trips = def.Trips
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.PurgeOlderThan <= 0 {
		c.PurgeOlderThan = def.PurgeOlderThan
	}
	return c
}

// SortTrips orders trips by priority, keeping input order within a priority.
func SortTrips(trips []Trip) []Trip {
	out := append([]Trip(nil), trips...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
