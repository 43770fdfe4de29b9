package engine

import (
	"groupcast/internal/models"
)

// armTimerLocked clears any prior timer for the job and arms a new one for
// max(0, scheduledAt-now). Calling it again is idempotent regardless of how
// many times a job is re-scheduled. Caller holds e.mu.
func (e *Engine) armTimerLocked(job *models.Job) {
	e.clearTimerLocked(job.ID)

	delay := job.ScheduledAt.Sub(e.clock.Now())
	if delay < 0 {
		delay = 0
	}

	id := job.ID
	e.timers[id] = e.clock.AfterFunc(delay, func() {
		e.executeJob(e.execCtx, id)
	})
}

// clearTimerLocked is safe to call on an id with no armed timer.
func (e *Engine) clearTimerLocked(id int64) {
	if timer, ok := e.timers[id]; ok {
		timer.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) stopAllTimersLocked() {
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
}

// PendingTimers reports how many timers are currently armed.
func (e *Engine) PendingTimers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// HasTimer reports whether a timer is armed for the given job id.
func (e *Engine) HasTimer(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.timers[id]
	return ok
}
