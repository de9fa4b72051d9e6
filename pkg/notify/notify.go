// Package notify drives the ambient sync indicator. The desktop shell
// renders it as the tray icon; the CLI host falls back to log output.
package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// State is the coarse-grained indicator state.
type State string

const (
	StateNormal  State = "normal"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
)

// successRevertDelay is how long the success state is shown before the
// indicator falls back to normal.
const successRevertDelay = 10 * time.Second

// Indicator receives state changes. Implementations must tolerate repeated
// sets of the same state.
type Indicator interface {
	SetIndicator(state State)
}

// LogIndicator logs state changes. It stands in for the tray icon when
// running headless.
type LogIndicator struct{}

// SetIndicator implements Indicator.
func (LogIndicator) SetIndicator(state State) {
	log.WithField("state", state).Debug("Sync indicator changed")
}

// Tracker serializes indicator updates and auto-reverts the success state
// to normal after a short delay, unless a newer state arrived meanwhile.
type Tracker struct {
	mu        sync.Mutex
	indicator Indicator
	clock     clockwork.Clock
	gen       int
}

// NewTracker creates a Tracker around the given indicator.
func NewTracker(indicator Indicator) *Tracker {
	return &Tracker{
		indicator: indicator,
		clock:     clockwork.NewRealClock(),
	}
}

// Set pushes a new state to the indicator.
func (t *Tracker) Set(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.indicator.SetIndicator(state)

	if state != StateSuccess {
		return
	}

	gen := t.gen
	t.clock.AfterFunc(successRevertDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen != gen {
			// A newer state replaced success before the delay elapsed.
			return
		}
		t.gen++
		t.indicator.SetIndicator(StateNormal)
	})
}
