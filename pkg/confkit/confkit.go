package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
)

// ResolvePath expands environment variables in file and, when the result is
// relative, joins it onto base.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file path.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// LoadFile loads a go-zero style configuration file into T.
func LoadFile[T any](path string, useEnv bool) (*T, error) {
	var cfg T
	opts := []conf.Option{}
	if useEnv {
		opts = append(opts, conf.UseEnv())
	}
	if err := conf.Load(path, &cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// Section is a configuration block that lives in its own file, referenced
// from the main config by path.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate loads File (resolved against base) through loader and stores the
// result in Value. An empty File leaves the section untouched.
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

// Configured reports whether the section has a loaded value.
func (s *Section[T]) Configured() bool {
	return s != nil && s.Value != nil
}

// Expand trims and expands ${VAR} references in a raw yaml string.
func Expand(raw string) string {
	return strings.TrimSpace(os.ExpandEnv(raw))
}

// Override returns the value of envKey when set, otherwise the expanded current value.
func Override(current, envKey string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return Expand(current)
}

// ParseDuration parses a raw duration string for the named field. Empty input
// yields fallback; zero or negative durations are rejected.
func ParseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = Expand(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", field, d)
	}
	return d, nil
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
