package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"team-chat/contract"
	"team-chat/errors"
	"time"
)

const defaultRestartDelay = 200 * time.Millisecond

// RestartHook is told about every worker restart, after the crash is logged.
type RestartHook func(worker string, err error)

type SupervisorOption func(*Supervisor)

func WithRestartDelay(delay time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.restartDelay = delay }
}

func WithRestartHook(hook RestartHook) SupervisorOption {
	return func(s *Supervisor) { s.onRestart = hook }
}

// Supervisor runs long-lived workers of the chat server (presence relay,
// event fanout, heartbeat). A worker that panics or returns an error is
// restarted after a delay. A worker returning nil is done for good.
type Supervisor struct {
	mu           sync.Mutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	log          *slog.Logger
	workers      []contract.Worker
	restartDelay time.Duration
	onRestart    RestartHook
}

func NewSupervisor(log *slog.Logger, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{log: log, restartDelay: defaultRestartDelay}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts every added worker and blocks until all of them returned,
// which happens when ctx is done or Stop is called.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	workers := append([]contract.Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, worker := range workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs one worker in its own goroutine until ctx is done.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		for ctx.Err() == nil {
			err := s.runOnce(ctx, worker)
			if err == nil {
				s.log.Info("Worker finished", "name", name)
				return
			}
			if ctx.Err() != nil {
				break
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "error", err, "delay", s.restartDelay)
			if s.onRestart != nil {
				s.onRestart(name, err)
			}
			select {
			case <-ctx.Done():
			case <-time.After(s.restartDelay):
			}
		}
		s.log.Info("Worker stopped", "name", name)
	}()
}

// runOnce turns a panic of the worker into an error.
func (s *Supervisor) runOnce(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels the supervised workers. Run returns once they all exited.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
