// Package fsguard is the cross-platform advisory-locking wrapper spec §4.9
// requires: shared locks for reads, exclusive locks for writes, with
// guaranteed release on every exit path. The resource RPC callee
// (streaming an artifact out, uploading one in) and the directory-backed
// resource node's LoadArtifact/SaveArtifact go through it so that a file
// never gets read mid-write across a local/remote race. The lock is taken
// on a "<path>.lock" sidecar file, not on path itself.
package fsguard

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is how often TryLockContext re-attempts the lock while it
// waits for the context deadline or a successful acquire.
const retryDelay = 25 * time.Millisecond

// ErrNotAcquired is returned when a lock could not be obtained before the
// context was done.
var ErrNotAcquired = errors.New("fsguard: lock not acquired")

// WithReadLock acquires a shared lock on path (creating it if absent is
// the caller's job, not the lock's), runs fn, and releases the lock even
// if fn panics or returns an error.
func WithReadLock(ctx context.Context, path string, fn func(*os.File) error) error {
	lk := flock.New(path + ".lock")
	locked, err := lk.TryRLockContext(ctx, retryDelay)
	if err != nil {
		return err
	}
	if !locked {
		return ErrNotAcquired
	}
	defer func() { _ = lk.Unlock() }()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return fn(f)
}

// ErrExists is returned by WithExclusiveCreate when path already exists —
// the "rejects overwrite" rule spec §4.9/§6 places on uploaded artifacts.
var ErrExists = errors.New("fsguard: file already exists")

// WithExclusiveCreate acquires an exclusive lock on path, creates it with
// O_EXCL (failing with ErrExists if it is already there), and runs fn with
// the freshly created file. Used by the upload_stream RPC callee, which
// must never silently overwrite an existing artifact.
func WithExclusiveCreate(ctx context.Context, path string, fn func(*os.File) error) error {
	lk := flock.New(path + ".lock")
	locked, err := lk.TryLockContext(ctx, retryDelay)
	if err != nil {
		return err
	}
	if !locked {
		return ErrNotAcquired
	}
	defer func() { _ = lk.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return err
	}
	defer func() { _ = f.Close() }()

	return fn(f)
}

// WithWriteLock acquires an exclusive lock on path and runs fn, guaranteeing
// release on every exit path including fn panicking.
func WithWriteLock(ctx context.Context, path string, fn func(*os.File) error) error {
	lk := flock.New(path + ".lock")
	locked, err := lk.TryLockContext(ctx, retryDelay)
	if err != nil {
		return err
	}
	if !locked {
		return ErrNotAcquired
	}
	defer func() { _ = lk.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return fn(f)
}
