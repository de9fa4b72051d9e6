package sync

import (
	"sync"
)

// Store holds the sync sessions for all projects. All access goes through
// its mutex. Get returns a deep copy, and update runs the mutator while the
// lock is held, so callers never see a session mid-mutation.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	maxAttempts int
}

// NewStore creates an empty session store. maxAttempts seeds the retry
// bookkeeping of sessions created on first access.
func NewStore(maxAttempts int) *Store {
	return &Store{
		sessions:    map[string]*Session{},
		maxAttempts: maxAttempts,
	}
}

// Get returns a copy of the project's session. Projects that have never
// synced get an idle session.
func (st *Store) Get(projectID string) Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[projectID]
	if !ok {
		return newSession(projectID, st.maxAttempts)
	}
	return sess.clone()
}

// All returns copies of every tracked session.
func (st *Store) All() []Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		out = append(out, sess.clone())
	}
	return out
}

// Reset drops the project's session so the next Get sees defaults.
func (st *Store) Reset(projectID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, projectID)
}

func (st *Store) update(projectID string, fn func(*Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[projectID]
	if !ok {
		created := newSession(projectID, st.maxAttempts)
		sess = &created
		st.sessions[projectID] = sess
	}
	fn(sess)
}
