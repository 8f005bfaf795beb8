package join

import (
	"context"
	"fmt"
	"strings"

	"github.com/tryfix/bucketjoin/worker_pool"
	"github.com/tryfix/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindWorkerFailure
	KindCombineFailure
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return `InvalidArgument`
	case KindWorkerFailure:
		return `WorkerFailure`
	case KindCombineFailure:
		return `CombineFailure`
	case KindCanceled:
		return `Canceled`
	}

	return `Unknown`
}

// WorkerFailure is the failure of a single parallel worker.
type WorkerFailure struct {
	Worker int
	Keys   int
	Err    error
}

// Error is returned by every joiner failure. Failures is only set for KindWorkerFailure
// and lists every failed worker, ordered by worker id.
type Error struct {
	Kind     Kind
	Message  string
	Cause    error
	Failures []WorkerFailure
}

func (e *Error) Error() string {
	b := new(strings.Builder)
	fmt.Fprintf(b, `%s: %s`, e.Kind, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(b, ` due to %s`, e.Cause)
	}

	for _, f := range e.Failures {
		fmt.Fprintf(b, `; worker-%d (%d keys): %s`, f.Worker, f.Keys, f.Err)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a joiner error, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}

	return KindUnknown
}

func invalidArgument(format string, args ...interface{}) error {
	return &Error{
		Kind:    KindInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

func combineFailure(key interface{}, err error) error {
	return &Error{
		Kind:    KindCombineFailure,
		Message: fmt.Sprintf(`cannot combine bucket [%v]`, key),
		Cause:   err,
	}
}

func canceled(err error) error {
	return &Error{
		Kind:    KindCanceled,
		Message: `join canceled`,
		Cause:   err,
	}
}

// fromPool maps a worker pool error to a joiner error.
func fromPool(err error, keysPerWorker []int) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return canceled(err)
	}

	failure, ok := err.(*worker_pool.Failure)
	if !ok {
		return &Error{
			Kind:    KindWorkerFailure,
			Message: `worker pool failed`,
			Cause:   err,
		}
	}

	e := &Error{
		Kind:    KindWorkerFailure,
		Message: fmt.Sprintf(`%d of %d workers failed`, len(failure.Errors), len(keysPerWorker)),
		Cause:   errors.WithPrevious(failure.Errors[0].Err, `first worker failure`),
	}

	for _, we := range failure.Errors {
		e.Failures = append(e.Failures, WorkerFailure{
			Worker: we.Worker,
			Keys:   keysPerWorker[we.Worker],
			Err:    we.Err,
		})
	}

	return e
}
