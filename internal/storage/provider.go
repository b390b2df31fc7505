// Package storage keeps calendar export files in a flat directory on disk.
package storage

import "errors"

// ErrInvalidName is returned for names that are not plain .ics file names.
var ErrInvalidName = errors.New("storage: invalid export name")

// Provider reads and replaces export files by name.
type Provider interface {
	Read(name string) ([]byte, error)
	// Write replaces name with content. It reports false, without touching
	// the file, when the stored bytes already match.
	Write(name string, content []byte) (bool, error)
}
