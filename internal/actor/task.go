package actor

import (
	"fmt"
	"runtime/debug"
)

// JoinError reports that a task ended abnormally.
type JoinError struct {
	Task  string
	Err   error
	Panic any
	Stack []byte
}

func (e *JoinError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task %s panicked: %v", e.Task, e.Panic)
	}
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// Task is the handle of a running actor goroutine.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Go runs fn on its own goroutine. A panic in fn is recovered and reported
// from Wait as a JoinError.
func Go(name string, fn func() error) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = &JoinError{Task: name, Panic: r, Stack: debug.Stack()}
			}
		}()
		if err := fn(); err != nil {
			t.err = &JoinError{Task: name, Err: err}
		}
	}()
	return t
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task has finished and returns its JoinError, if any.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}
