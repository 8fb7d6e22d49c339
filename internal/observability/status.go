package observability

import (
	"sync"
	"time"
)

type SystemStatus struct {
	mu            sync.RWMutex
	ActiveRuns    int
	CompletedRuns int
	LastGoal      string
	LastHeartbeat time.Time
	StartedAt     time.Time
}

// StatusView is a copy of SystemStatus safe to hand out.
type StatusView struct {
	ActiveRuns    int       `json:"active_runs"`
	CompletedRuns int       `json:"completed_runs"`
	LastGoal      string    `json:"last_goal,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Uptime        string    `json:"uptime"`
}

var globalStatus = &SystemStatus{
	LastHeartbeat: time.Now(),
	StartedAt:     time.Now(),
}

// RunStarted records that a goal began executing.
func RunStarted(goal string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.ActiveRuns++
	globalStatus.LastGoal = goal
}

// RunEnded records that a goal stopped executing, whatever the outcome.
func RunEnded() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	if globalStatus.ActiveRuns > 0 {
		globalStatus.ActiveRuns--
	}
	globalStatus.CompletedRuns++
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() StatusView {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return StatusView{
		ActiveRuns:    globalStatus.ActiveRuns,
		CompletedRuns: globalStatus.CompletedRuns,
		LastGoal:      globalStatus.LastGoal,
		LastHeartbeat: globalStatus.LastHeartbeat,
		Uptime:        time.Since(globalStatus.StartedAt).Round(time.Second).String(),
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
