package client

import (
	"context"
	"sync/atomic"

	"github.com/taskdeck/backend/domain"
)

// State tracks an optimistic mutation through its lifetime.
type State int32

const (
	StatePending State = iota
	StateConfirmed
	StateFailed
)

// Result is the settled outcome of a mutation: the canonical server task on
// success (nil for a delete) or a domain error on failure.
type Result struct {
	Task *domain.Task
	Err  error
}

// Mutation is a handle to an in-flight optimistic mutation. Exactly one Result
// is delivered on Done once the mutation has been confirmed or rolled back.
type Mutation struct {
	TaskID string
	state  atomic.Int32
	done   chan Result
}

func newMutation(taskID string) *Mutation {
	return &Mutation{
		TaskID: taskID,
		done:   make(chan Result, 1),
	}
}

// State reports where the mutation currently stands.
func (m *Mutation) State() State {
	return State(m.state.Load())
}

// Done returns the channel the settled result is delivered on. The channel is
// closed after delivery.
func (m *Mutation) Done() <-chan Result {
	return m.done
}

// Wait blocks until the mutation settles or the context expires.
func (m *Mutation) Wait(ctx context.Context) (*domain.Task, error) {
	select {
	case res := <-m.done:
		return res.Task, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Mutation) settle(task *domain.Task, err error) {
	if err != nil {
		m.state.Store(int32(StateFailed))
	} else {
		m.state.Store(int32(StateConfirmed))
	}
	m.done <- Result{Task: task, Err: err}
	close(m.done)
}
