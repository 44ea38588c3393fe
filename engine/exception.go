package engine

import (
	"github.com/wippyai/weaver/il"
)

// Exception is an IL error object in flight. It is returned by Invoke
// when no region of the call chain catches it.
type Exception struct {
	Object *Object
	Cause  error // host error the exception was created from, if any
}

// Type returns the type of the error object.
func (e *Exception) Type() *il.TypeDef {
	return e.Object.Type
}

// Message returns the error object's message field.
func (e *Exception) Message() string {
	s, _ := e.Object.Fields["message"].(string)
	return s
}

func (e *Exception) Error() string {
	if msg := e.Message(); msg != "" {
		return e.Object.Type.FullName() + ": " + msg
	}
	return e.Object.Type.FullName()
}

func (e *Exception) Unwrap() error {
	return e.Cause
}
