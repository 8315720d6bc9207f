// Package blobstore persists named blobs: payload files, records and chain
// index entries. Names are slash-separated paths relative to the store root.
package blobstore

import "errors"

// ErrNotFound is returned when a named blob does not exist.
var ErrNotFound = errors.New("blobstore: not found")

// Store reads and writes named blobs.
type Store interface {
	// Write stores data under name, replacing any existing blob.
	Write(name string, data []byte) error

	// Read returns the blob stored under name, or an error wrapping ErrNotFound.
	Read(name string) ([]byte, error)

	// List returns the base names of the blobs directly inside dir, sorted.
	// A missing dir is an error wrapping ErrNotFound.
	List(dir string) ([]string, error)

	// Remove deletes the named blob. Removing a missing blob is not an error.
	Remove(name string) error
}
