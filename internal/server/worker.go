package server

import (
	"context"
	"sync/atomic"

	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/session"
)

// Op is an operation run against the session by the worker goroutine.
type Op func(ctx context.Context, s *session.Session) (any, error)

type request struct {
	ctx   context.Context
	op    Op
	reply chan result
}

type result struct {
	value any
	err   error
}

// Worker owns a session. Every read and write of the session goes through
// its command channel and runs on the worker goroutine, one at a time.
type Worker struct {
	session  *session.Session
	requests chan request
	done     chan struct{}
	running  atomic.Bool
	logger   log.Log
}

// NewWorker returns a worker with room for queueSize pending requests.
func NewWorker(s *session.Session, queueSize int, logger log.Log) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Worker{
		session:  s,
		requests: make(chan request, queueSize),
		done:     make(chan struct{}),
		logger:   logger.With(log.String("component", "worker")),
	}
}

// Run serves requests until ctx is done. A worker runs once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	defer close(w.done)

	w.logger.Debug("Worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker stopped", log.Int("pending", len(w.requests)))
			return nil
		case req := <-w.requests:
			if err := req.ctx.Err(); err != nil {
				req.reply <- result{err: err}
				continue
			}
			v, err := req.op(req.ctx, w.session)
			req.reply <- result{value: v, err: err}
		}
	}
}

// Do submits op and waits for its result. When ctx ends first Do returns
// ctx.Err(); an op already running sees the same cancelled context.
func (w *Worker) Do(ctx context.Context, op Op) (any, error) {
	select {
	case <-w.done:
		return nil, ErrWorkerStopped
	default:
	}

	req := request{ctx: ctx, op: op, reply: make(chan result, 1)}
	select {
	case w.requests <- req:
	default:
		return nil, ErrQueueFull
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrWorkerStopped
	}
}

// call runs fn on the worker and returns its typed result.
func call[T any](ctx context.Context, w *Worker, fn func(ctx context.Context, s *session.Session) (T, error)) (T, error) {
	v, err := w.Do(ctx, func(ctx context.Context, s *session.Session) (any, error) {
		return fn(ctx, s)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
