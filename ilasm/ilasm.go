package ilasm

import (
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm/internal/parser"
	"github.com/wippyai/weaver/ilasm/internal/token"
)

// Parse assembles source into a validated module.
func Parse(source string) (*il.Module, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		if te, ok := err.(*token.Error); ok {
			return nil, errors.ParseFailed(te.Line, te.Msg)
		}
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "tokenize")
	}
	mod, err := parser.New(tokens).Parse()
	if err != nil {
		return nil, err
	}
	if err := mod.Validate(); err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidData).
			Path(mod.Name).
			Cause(err).
			Detail("invalid module").
			Build()
	}
	return mod, nil
}

// Compile assembles source into the binary module format.
func Compile(source string) ([]byte, error) {
	mod, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return mod.Encode()
}
