package bridge

import (
	"errors"
	"fmt"
)

// Failure categories for companion communication. Callers branch on these
// to produce user-facing remediation ("extension not installed" vs
// "extension not responding"); none of them is retried automatically.
var (
	// ErrNotInstalled: no bridge socket exists or nothing is listening on
	// it. The companion is not installed, or not running in this browser.
	ErrNotInstalled = errors.New("companion extension not installed")

	// ErrTimeout: the socket exists and accepted the request, but no
	// reply arrived within the bound. Installed but not responding.
	ErrTimeout = errors.New("companion extension not responding")

	// ErrNotConnected: the last probe was negative; the caller refused to
	// attempt the request at all.
	ErrNotConnected = errors.New("companion extension not connected")
)

// CompanionError is an application error explicitly reported by the
// companion (for example "no valid contacts for campaign"). Permanent
// for the request that caused it.
type CompanionError struct {
	Message string
}

func (e *CompanionError) Error() string {
	return fmt.Sprintf("companion error: %s", e.Message)
}
