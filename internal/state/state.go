// Package state defines the per-agent state protocol and the keyed container
// that fans one telemetry bundle out to several sub-states.
package state

import (
	"errors"
	"fmt"

	"github.com/trackside/envstate/internal/telemetry"
)

// ErrStateNotFound is returned by Composite.Get for a key that was never added.
var ErrStateNotFound = errors.New("state not found")

// State is anything that can absorb a telemetry bundle and export itself as a
// flat map.
type State interface {
	Update(b *telemetry.Bundle) error
	ToDict() map[string]any
}

// Key names a sub-state slot.
type Key int

const (
	KeyAction Key = iota
	KeyPose
	KeyStatus
)

func (k Key) String() string {
	switch k {
	case KeyAction:
		return "action"
	case KeyPose:
		return "pose"
	case KeyStatus:
		return "status"
	default:
		return fmt.Sprintf("key(%d)", int(k))
	}
}
