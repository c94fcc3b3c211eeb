// Package kvstore abstracts the durable key/value storage the client keeps
// between sessions, the way a browser keeps localStorage.
package kvstore

import "errors"

var (
	// ErrNotFound indicates no value is stored under the requested key.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrInvalidKey indicates the provided key is empty or malformed.
	ErrInvalidKey = errors.New("kvstore: invalid key")
	// ErrStoreClosed indicates the store can no longer be used.
	ErrStoreClosed = errors.New("kvstore: closed")
)

// Store persists string values by key.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes the value stored under key. Deleting an absent key is
	// not an error.
	Delete(key string) error
}

// Event describes an externally observed change to a stored key.
type Event struct {
	Key     string
	Removed bool
}
