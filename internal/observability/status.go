package observability

import (
	"sync"
	"time"
)

// SystemStatus tracks the sessions currently in flight for the terminal
// dashboard.
type SystemStatus struct {
	mu            sync.RWMutex
	Active        map[string]string // session id -> phase
	LastSession   string
	LastPhase     string
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	Active:        make(map[string]string),
	LastHeartbeat: time.Now(),
}

// TrackSession records a session's phase. Terminal phases drop the
// session from the active set.
func TrackSession(sessionID, phase string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	switch phase {
	case "completed", "failed":
		delete(globalStatus.Active, sessionID)
	default:
		globalStatus.Active[sessionID] = phase
	}
	globalStatus.LastSession = sessionID
	globalStatus.LastPhase = phase
}

// GetStatus retrieves a snapshot of the tracked state.
func GetStatus() (active int, lastSession, lastPhase string, lastHeartbeat time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return len(globalStatus.Active), globalStatus.LastSession, globalStatus.LastPhase, globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
