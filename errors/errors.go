package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad    Phase = "load"    // module read and decode
	PhaseParse   Phase = "parse"   // ilasm text parsing
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseScan    Phase = "scan"    // annotation enumeration
	PhaseCapture Phase = "capture" // argument capture emission
	PhaseBuild   Phase = "build"   // aspect instance construction
	PhaseBind    Phase = "bind"    // self-binding injection
	PhaseWeave   Phase = "weave"   // entry/exit/exception splicing
	PhaseVerify  Phase = "verify"  // stack balance verification
	PhaseWrite   Phase = "write"   // module encode and write
	PhaseRuntime Phase = "runtime" // interpreter execution
	PhaseHost    Phase = "host"    // host function registration
)

// Kind categorizes the error
type Kind string

const (
	KindUnresolvable          Kind = "unresolvable"
	KindUnsupportedLiteral    Kind = "unsupported_literal"
	KindVoidArgument          Kind = "void_argument"
	KindStructural            Kind = "structural"
	KindUnresolvedConstructor Kind = "unresolved_constructor"
	KindIO                    Kind = "io"
	KindInvalidData           Kind = "invalid_data"
	KindOutOfBounds           Kind = "out_of_bounds"
	KindStackImbalance        Kind = "stack_imbalance"
	KindNotFound              Kind = "not_found"
	KindTypeMismatch          Kind = "type_mismatch"
	KindInvalidInput          Kind = "invalid_input"
	KindRegistration          Kind = "registration"
	KindUnsupported           Kind = "unsupported"
)

// Error is the structured error type used throughout the weaver
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string // IL type full name
	Member string // method or field signature
	Detail string
	Path   []string
}

func (e *Error) Error() string {
	msg := "[" + string(e.Phase) + "] " + string(e.Kind)
	if len(e.Path) > 0 {
		msg += " at " + strings.Join(e.Path, ".")
	}

	subject := e.subject()
	switch {
	case subject != "" && e.Detail != "":
		msg += ": " + subject + " - " + e.Detail
	case subject != "":
		msg += ": " + subject
	case e.Detail != "":
		msg += ": " + e.Detail
	}

	if e.Cause != nil {
		msg += " (caused by: " + e.Cause.Error() + ")"
	}
	return msg
}

// subject names the IL element the error is about, member first.
func (e *Error) subject() string {
	if e.Member != "" {
		return e.Member
	}
	if e.Type != "" {
		return "type " + e.Type
	}
	return ""
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Fatal reports whether the error must abort a weaving run.
// Only unresolvable annotations are downgraded to a skip.
func (e *Error) Fatal() bool {
	return e.Kind != KindUnresolvable
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the IL type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Member sets the method or field signature
func (b *Builder) Member(m string) *Builder {
	b.err.Member = m
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unresolvable creates a non-fatal error for a type that cannot be resolved
func Unresolvable(phase Phase, typeName string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnresolvable,
		Type:   typeName,
		Detail: "cannot resolve type",
		Cause:  cause,
	}
}

// UnsupportedLiteral creates an error for a constructor literal of an unsupported kind
func UnsupportedLiteral(member string, kind string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUnsupportedLiteral,
		Member: member,
		Detail: fmt.Sprintf("unsupported literal kind %s", kind),
		Value:  kind,
	}
}

// VoidArgument creates an error for a constructor argument typed as void
func VoidArgument(member string, index int) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindVoidArgument,
		Member: member,
		Detail: fmt.Sprintf("constructor argument %d is void", index),
		Value:  index,
	}
}

// Structural creates a structural weave failure
func Structural(phase Phase, member string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStructural,
		Member: member,
		Detail: detail,
	}
}

// UnresolvedConstructor creates an error for a handler constructor that does not exist
func UnresolvedConstructor(typeName, ctor string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUnresolvedConstructor,
		Type:   typeName,
		Member: ctor,
		Detail: "no matching constructor",
	}
}

// IO creates an I/O failure for module load or write
func IO(phase Phase, path string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: path,
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host registration error
func Registration(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates an ilasm parsing error
func ParseFailed(line int, detail string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("line %d: %s", line, detail),
		Value:  line,
	}
}
