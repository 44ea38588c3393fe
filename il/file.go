package il

import (
	"os"
	"path/filepath"

	"github.com/wippyai/weaver/errors"
)

// ReadFile loads and decodes a module file.
func ReadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseLoad, path, err)
	}
	m, err := ParseModule(data)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	return m, nil
}

// WriteFile encodes m and replaces path atomically: the bytes go to a
// temporary file in the same directory which is then renamed over path.
func WriteFile(path string, m *Module) error {
	data, err := m.Encode()
	if err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "encode module")
	}
	return WriteBytes(path, data)
}

// WriteBytes atomically replaces path with data.
func WriteBytes(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.IO(errors.PhaseWrite, path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.IO(errors.PhaseWrite, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.IO(errors.PhaseWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.IO(errors.PhaseWrite, path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return errors.IO(errors.PhaseWrite, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.IO(errors.PhaseWrite, path, err)
	}
	return nil
}
