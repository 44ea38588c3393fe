package runtime

import (
	"github.com/wippyai/weaver/ilasm"
)

// LoadText assembles a module from ilasm text and loads it.
func (r *Runtime) LoadText(src string) (*Module, error) {
	m, err := ilasm.Parse(src)
	if err != nil {
		return nil, err
	}
	return r.LoadModule(m)
}
