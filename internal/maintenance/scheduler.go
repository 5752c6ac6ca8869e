/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/telemetry"
)

// ErrSchedulerStopped reports registration against a stopped scheduler.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// job is one armed one-shot timer.
type job struct {
	timer  *time.Timer
	runAt  time.Time
	action string
}

// Scheduler arms a pair of one-shot timers per window: `{id}-start`
// firing Begin and `{id}-end` firing Conclude. It is an explicitly
// owned instance, constructed once per process and passed by handle.
type Scheduler struct {
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]*job
	stopped bool
}

// NewScheduler creates a scheduler. Triggers fired by its timers
// receive a context cancelled when the scheduler stops.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

func startJobName(windowID string) string { return windowID + "-start" }
func endJobName(windowID string) string   { return windowID + "-end" }

// Schedule arms the start and end jobs for the window. Same-named jobs
// are replaced, never duplicated. Due or overdue instants fire
// immediately rather than being skipped.
func (s *Scheduler) Schedule(w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	s.registerLocked(startJobName(w.ID), "start", w.Start, w.Begin)
	s.registerLocked(endJobName(w.ID), "end", w.End, w.Conclude)
	return nil
}

// Unschedule removes both of the window's jobs. A job that already
// fired or was never registered is reported and swallowed; the two
// removals are attempted independently.
func (s *Scheduler) Unschedule(w *Window) {
	s.UnscheduleID(w.ID)
}

// UnscheduleID removes both jobs for a window id.
func (s *Scheduler) UnscheduleID(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeLocked(startJobName(windowID)) {
		s.logger.Info().Str("window_id", windowID).Msg("job to start window already removed")
	}
	if !s.removeLocked(endJobName(windowID)) {
		s.logger.Info().Str("window_id", windowID).Msg("job to end window already removed")
	}
}

// Reschedule replaces the window's job pair under a single lock, so no
// caller observes a state with the old jobs gone and the new ones not
// yet armed.
func (s *Scheduler) Reschedule(w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	s.removeLocked(startJobName(w.ID))
	s.removeLocked(endJobName(w.ID))
	s.registerLocked(startJobName(w.ID), "start", w.Start, w.Begin)
	s.registerLocked(endJobName(w.ID), "end", w.End, w.Conclude)
	return nil
}

// JobAt reports the fire time of an armed job, for inspection.
func (s *Scheduler) JobAt(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return j.runAt, true
}

// JobCount reports the number of armed jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop cancels every armed job and the trigger context. In-flight
// triggers complete; no further firings occur.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for name, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, name)
	}
	s.cancel()
	s.logger.Info().Msg("scheduler stopped")
}

// registerLocked arms a one-shot timer under the given name, replacing
// any job already registered under it. Caller holds s.mu.
func (s *Scheduler) registerLocked(name, action string, at time.Time, fn func(context.Context)) {
	if existing, ok := s.jobs[name]; ok {
		existing.timer.Stop()
		delete(s.jobs, name)
		s.logger.Debug().Str("job", name).Msg("replacing armed job")
	}

	at = at.UTC()
	j := &job{runAt: at, action: action}
	j.timer = time.AfterFunc(time.Until(at), func() {
		s.consume(name, j)
		telemetry.JobsFiredTotal.WithLabelValues(action).Inc()
		s.logger.Info().Str("job", name).Time("at", at).Msg("job fired")
		fn(s.ctx)
	})
	s.jobs[name] = j

	telemetry.JobsArmedTotal.WithLabelValues(action).Inc()
	s.logger.Debug().Str("job", name).Time("at", at).Msg("job armed")
}

// consume drops a fired job from the table. The identity check keeps
// a late firing from clobbering a replacement armed under the same
// name in the meantime.
func (s *Scheduler) consume(name string, fired *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.jobs[name]; ok && current == fired {
		delete(s.jobs, name)
	}
}

// removeLocked stops and forgets a job by name. Caller holds s.mu.
func (s *Scheduler) removeLocked(name string) bool {
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(s.jobs, name)
	return true
}
