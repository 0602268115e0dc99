// Package vsenttest contains common constants and utilities for the internal
// VPN Sentinel packages' tests.
package vsenttest

import (
	"time"
)

// Timeout is the common timeout for tests.
const Timeout = 1 * time.Second

// Now is the common fixed time used by tests that need a deterministic clock.
var Now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
