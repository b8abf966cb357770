package avatar

import (
	"context"
	"fmt"
	"time"

	"github.com/ent0n29/solace/internal/generation"
)

// State is the local view of a video job.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateDone      State = "done"
	StateError     State = "error"
	StateTimedOut  State = "timedOut"
)

// Job lives for exactly one avatar call and is never persisted. A job in
// StateSubmitted has not reached the provider yet; the first Step submits it.
type Job struct {
	ID          string
	State       State
	Text        string
	PresenterID string
	ResultURL   string
	Attempts    int
	Err         error
}

func NewJob(text, presenterID string) Job {
	return Job{State: StateSubmitted, Text: text, PresenterID: presenterID}
}

func (j Job) Terminal() bool {
	switch j.State {
	case StateDone, StateError, StateTimedOut:
		return true
	default:
		return false
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller drives jobs through their states against one provider.
type Poller struct {
	provider    VideoProvider
	interval    time.Duration
	maxAttempts int
	callTimeout time.Duration
	sleep       SleepFunc
	onStep      func(from, to Job)
}

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// CallTimeout bounds each submit and status call.
	CallTimeout time.Duration
	Sleep       SleepFunc
	OnStep      func(from, to Job)
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 30
	DefaultCallTimeout  = 30 * time.Second
)

func NewPoller(provider VideoProvider, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollAttempts
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = ContextSleep
	}
	return &Poller{
		provider:    provider,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		callTimeout: cfg.CallTimeout,
		sleep:       cfg.Sleep,
		onStep:      cfg.OnStep,
	}
}

// Step performs exactly one transition. Terminal jobs are returned as is;
// a job in an unknown state moves to StateError.
func (p *Poller) Step(ctx context.Context, job Job) Job {
	next := p.transition(ctx, job)
	if p.onStep != nil && next.State != job.State {
		p.onStep(job, next)
	}
	return next
}

func (p *Poller) transition(ctx context.Context, job Job) Job {
	switch job.State {
	case StateSubmitted:
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		id, err := p.provider.Submit(callCtx, job.Text, job.PresenterID)
		cancel()
		if err != nil {
			job.State = StateError
			job.Err = err
			return job
		}
		if id == "" {
			job.State = StateError
			job.Err = p.fail(generation.ErrProviderUnavailable, "submit returned no job id")
			return job
		}
		job.ID = id
		job.State = StatePolling
		return job

	case StatePolling:
		if job.Attempts >= p.maxAttempts {
			job.State = StateTimedOut
			job.Err = p.fail(generation.ErrJobTimeout, fmt.Sprintf("no result after %d status checks", job.Attempts))
			return job
		}
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		status, err := p.provider.Status(callCtx, job.ID)
		cancel()
		job.Attempts++
		if err != nil {
			job.State = StateError
			job.Err = err
			return job
		}
		switch status.State {
		case RemoteDone:
			if status.ResultURL == "" {
				job.State = StateError
				job.Err = p.fail(generation.ErrProviderUnavailable, "job done without result url")
				return job
			}
			job.State = StateDone
			job.ResultURL = status.ResultURL
			return job
		case RemoteError:
			job.State = StateError
			job.Err = p.fail(generation.ErrProviderUnavailable, "remote job failed: "+status.Detail)
			return job
		}
		if job.Attempts >= p.maxAttempts {
			return job
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			job.State = StateError
			job.Err = p.fail(generation.ErrProviderTimeout, "poll wait interrupted: "+err.Error())
		}
		return job

	case StateDone, StateError, StateTimedOut:
		return job

	default:
		job.Err = p.fail(generation.ErrProviderUnavailable, fmt.Sprintf("unknown job state %q", job.State))
		job.State = StateError
		return job
	}
}

// Run steps job until it is terminal.
func (p *Poller) Run(ctx context.Context, job Job) Job {
	for !job.Terminal() {
		job = p.Step(ctx, job)
	}
	return job
}

func (p *Poller) fail(kind error, detail string) error {
	return &generation.ProviderError{Provider: p.provider.Name(), Kind: kind, Detail: detail}
}

// jobError turns a non-done terminal job into the error WithFallback
// classifies.
func jobError(job Job) error {
	if job.Err != nil {
		return job.Err
	}
	return fmt.Errorf("%w: job ended in state %s", generation.ErrProviderUnavailable, job.State)
}
