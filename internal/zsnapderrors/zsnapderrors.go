// Package zsnapderrors defines the error kind taxonomy the execution engine
// and scheduler classify every failure into, following the same
// typed-error-wraps-context shape internal/zfs uses for command failures.
package zsnapderrors

import "fmt"

// Kind is one of the five error kinds the engine distinguishes when
// deciding how a failed step affects the rest of a dataset's sequence.
type Kind int

const (
	// KindConfigError is an invalid INI file, unknown template, bad schema
	// string, or mutually exclusive option pair. Fatal at startup; disables
	// only the offending dataset at runtime reconfigure.
	KindConfigError Kind = iota
	// KindToolFailure is a nonzero exit from the zfs tool. Aborts the
	// current dataset's sequence.
	KindToolFailure
	// KindEndpointUnreachable is a failed TCP reachability probe. Skips the
	// replication step only; snapshot and clean still run.
	KindEndpointUnreachable
	// KindHookFailure is a nonzero exit from a pre/post/replicate-post hook
	// command. Aborts the sequence at its step; cleaning is not performed.
	KindHookFailure
	// KindPipelineFailure is any stage of the send/compress/ssh/receive
	// pipeline exiting nonzero. Treated identically to KindToolFailure.
	KindPipelineFailure
)

// String renders the kind's name, matching the spec's own vocabulary.
func (k Kind) String() string {
	switch k {
	case KindConfigError:
		return "ConfigError"
	case KindToolFailure:
		return "ToolFailure"
	case KindEndpointUnreachable:
		return "EndpointUnreachable"
	case KindHookFailure:
		return "HookFailure"
	case KindPipelineFailure:
		return "PipelineFailure"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying cause with the dataset and step it occurred in,
// plus its Kind, so call sites can both log rich context and
// errors.Is/errors.As against a specific kind.
type Error struct {
	Kind    Kind
	Dataset string
	Step    string
	Cause   error
}

// New builds an Error for the given kind, dataset and step.
func New(kind Kind, dataset, step string, cause error) *Error {
	return &Error{Kind: kind, Dataset: dataset, Step: step, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: dataset %s: step %s", e.Kind, e.Dataset, e.Step)
	}
	return fmt.Sprintf("%s: dataset %s: step %s: %v", e.Kind, e.Dataset, e.Step, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, zsnapderrors.New(zsnapderrors.KindToolFailure, "", "", nil)),
// or more conveniently use the Is* helpers below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsToolFailure reports whether err is (or wraps) a ToolFailure.
func IsToolFailure(err error) bool { return isKind(err, KindToolFailure) }

// IsEndpointUnreachable reports whether err is (or wraps) an EndpointUnreachable.
func IsEndpointUnreachable(err error) bool { return isKind(err, KindEndpointUnreachable) }

// IsHookFailure reports whether err is (or wraps) a HookFailure.
func IsHookFailure(err error) bool { return isKind(err, KindHookFailure) }

// IsPipelineFailure reports whether err is (or wraps) a PipelineFailure.
func IsPipelineFailure(err error) bool { return isKind(err, KindPipelineFailure) }

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool { return isKind(err, KindConfigError) }

func isKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
