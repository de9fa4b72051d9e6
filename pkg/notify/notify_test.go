package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

type recordingIndicator struct {
	mu     sync.Mutex
	states []State
}

func (r *recordingIndicator) SetIndicator(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingIndicator) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State{}, r.states...)
}

func TestSuccessRevertsToNormal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	indicator := &recordingIndicator{}
	tracker := &Tracker{indicator: indicator, clock: clock}

	tracker.Set(StateSyncing)
	tracker.Set(StateSuccess)
	assert.Equal(t, []State{StateSyncing, StateSuccess}, indicator.snapshot())

	clock.Advance(successRevertDelay)
	assert.Eventually(t, func() bool {
		states := indicator.snapshot()
		return len(states) == 3 && states[2] == StateNormal
	}, time.Second, 5*time.Millisecond)
}

func TestRevertSkippedWhenNewStateArrives(t *testing.T) {
	clock := clockwork.NewFakeClock()
	indicator := &recordingIndicator{}
	tracker := &Tracker{indicator: indicator, clock: clock}

	tracker.Set(StateSuccess)
	tracker.Set(StateSyncing)

	clock.Advance(successRevertDelay)

	// The revert callback has fired by now but must not override syncing.
	assert.Never(t, func() bool {
		states := indicator.snapshot()
		return states[len(states)-1] == StateNormal
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []State{StateSuccess, StateSyncing}, indicator.snapshot())
}
