// Package config loads YAML configuration files with environment variable
// expansion and optional validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves after decoding.
type Validator interface {
	Validate() error
}

// Load reads filename into target. Fields absent from the file keep the
// values target already holds, so callers pass a pre-filled default.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := Decode(data, target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// LoadOptional behaves like Load but only validates target when filename
// does not exist.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return Load(filename, target)
}

// Decode expands ${VAR} and ${VAR:-default} references in data, decodes the
// YAML into target and validates it. Unknown keys are rejected.
func Decode[T any](data []byte, target *T) error {
	expanded := Expand(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return validate(target)
}

// Expand substitutes environment variables. ${VAR:-default} yields default
// when VAR is unset or empty.
func Expand(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, hasDef := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" || !hasDef {
			return v
		}
		return def
	})
}

func validate[T any](target *T) error {
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
