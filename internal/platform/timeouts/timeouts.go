// Package timeouts defines shared timeout constants used across the engine's
// entry points.
package timeouts

import "time"

// StorageOpen caps the wait time when opening and migrating a store.
const StorageOpen = 10 * time.Second

// Operation caps a single engine operation issued from the CLI.
const Operation = 30 * time.Second

// Recompute caps a whole-period batch recompute.
const Recompute = 10 * time.Minute

// Shutdown limits how long telemetry flushing may take on exit.
const Shutdown = 5 * time.Second
