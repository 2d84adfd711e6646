package confkit

import (
	"os"
	"path/filepath"
)

// ResolvePath expands environment variables in file and resolves it
// against base unless it is already absolute.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file path. Section
// files are resolved relative to it.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// Section is a piece of configuration kept in its own file next to the
// main config. File names the sibling file; Value holds the parsed
// content after Hydrate.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate resolves the section's File against base and parses it with
// loader. A section with no File stays empty and is not an error.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return err
	}
	s.File, s.Value = p, v
	return nil
}
