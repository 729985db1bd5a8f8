// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HeatDecayDuration is how long a new item stays highlighted. Heat
// starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 4 * time.Second

// HeatTracker maps item keys to ignition times for decaying change
// highlights. Not safe for concurrent use; it belongs to one model.
type HeatTracker[K comparable] struct {
	ignitions map[K]time.Time
}

// NewHeatTracker creates an empty tracker.
func NewHeatTracker[K comparable]() *HeatTracker[K] {
	return &HeatTracker[K]{ignitions: make(map[K]time.Time)}
}

// Ignite marks key as changed at now, restarting its decay.
func (tracker *HeatTracker[K]) Ignite(key K, now time.Time) {
	tracker.ignitions[key] = now
}

// Heat returns 1.0 at ignition, decaying linearly to 0.0 over
// HeatDecayDuration. Keys never ignited have no heat.
func (tracker *HeatTracker[K]) Heat(key K, now time.Time) float64 {
	ignition, exists := tracker.ignitions[key]
	if !exists {
		return 0
	}
	elapsed := now.Sub(ignition)
	if elapsed >= HeatDecayDuration || elapsed < 0 {
		return 0
	}
	return 1 - float64(elapsed)/float64(HeatDecayDuration)
}

// HasHot reports whether any key still has heat, and forgets keys
// that have fully decayed.
func (tracker *HeatTracker[K]) HasHot(now time.Time) bool {
	hot := false
	for key, ignition := range tracker.ignitions {
		if now.Sub(ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.ignitions, key)
	}
	return hot
}

// HeatStyle returns the background tint for a heat value: the hot
// accent for the first half of the decay, the warm accent for the
// second, and no tint at zero.
func HeatStyle(theme Theme, heat float64) (lipgloss.Style, bool) {
	switch {
	case heat <= 0:
		return lipgloss.NewStyle(), false
	case heat > 0.5:
		return lipgloss.NewStyle().Background(theme.HotAccent), true
	default:
		return lipgloss.NewStyle().Background(theme.WarmAccent), true
	}
}
