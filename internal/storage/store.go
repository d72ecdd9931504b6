// Package storage is the remote blob store used as the service's database.
// Whole documents are fetched and committed by name; there is no partial
// update and no locking, so concurrent writers race and the last commit wins.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the blob does not exist yet. Readers treat it as an
	// empty document.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned by Create when another writer created the blob first.
	ErrExists = errors.New("blob already exists")
)

// RemoteError wraps a transport failure talking to a backend.
type RemoteError struct {
	Op   string
	Name string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemote reports whether err is a transport failure rather than a missing blob.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

type Store interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	Commit(ctx context.Context, name string, data []byte, message string) error
	Create(ctx context.Context, name string, data []byte, message string) error
}

// Save commits data over an existing blob and creates it when missing.
func Save(ctx context.Context, s Store, name string, data []byte, message string) error {
	err := s.Commit(ctx, name, data, message)
	if errors.Is(err, ErrNotFound) {
		return s.Create(ctx, name, data, message)
	}
	return err
}

// LoadJSON decodes the named blob into v. A missing blob leaves v untouched
// and returns found=false with a nil error.
func LoadJSON(ctx context.Context, s Store, name string, v any) (bool, error) {
	data, err := s.Fetch(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func SaveJSON(ctx context.Context, s Store, name string, v any, message string) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return Save(ctx, s, name, data, message)
}
