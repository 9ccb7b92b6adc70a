/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Leader is the part of an election a Runner watches.
type Leader interface {
	IsLeader() bool
	LeaderCh() <-chan bool
}

// Solo leads unconditionally. It stands in for an election on a single instance.
type Solo struct{}

func (Solo) IsLeader() bool { return true }

// LeaderCh never fires.
func (Solo) LeaderCh() <-chan bool { return nil }

// Runner runs a job only while this instance leads. The job's context is
// cancelled when leadership is lost and the job restarts on re-election.
type Runner struct {
	leader Leader
	job    func(ctx context.Context)
	logger zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewRunner wraps job.
func NewRunner(leader Leader, name string, job func(ctx context.Context), logger zerolog.Logger) *Runner {
	return &Runner{
		leader: leader,
		job:    job,
		logger: logger.With().Str("component", "leader_aware").Str("job", name).Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer r.stop()

	if r.leader.IsLeader() {
		r.start(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case leader := <-r.leader.LeaderCh():
			if leader {
				r.start(ctx)
			} else {
				r.stop()
			}
		}
	}
}

// Running reports whether the job is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Runner) start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel, r.stopped = cancel, done
	r.logger.Info().Msg("became leader, starting job")

	go func() {
		defer close(done)
		r.job(ctx)
	}()
}

func (r *Runner) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.stopped
	r.cancel, r.stopped = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}

	r.logger.Info().Msg("stopping job")
	cancel()
	<-done
}
