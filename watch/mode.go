package watch

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects what a watcher checks on each cycle.
type Mode int

const (
	// ModeFast polls the server-asserted balance. No proofs are checked.
	ModeFast Mode = iota
	// ModeFull verifies every confirmed transaction with a Merkle proof
	// against a proof-of-work checked block header.
	ModeFull
)

// Default poll intervals. Full cycles do more work per tick.
const (
	DefaultFastInterval = 3 * time.Second
	DefaultFullInterval = 5 * time.Second
)

// ParseMode maps "fast" or "full" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "":
		return ModeFast, nil
	case "full":
		return ModeFull, nil
	default:
		return ModeFast, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeFull:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultInterval returns the poll interval used when none is configured.
func (m Mode) DefaultInterval() time.Duration {
	if m == ModeFull {
		return DefaultFullInterval
	}
	return DefaultFastInterval
}
