// Package profile is a reference consumer of the repository surface: a
// player-profile store with a read-through cache kept consistent across
// server processes by cluster change events.
package profile
