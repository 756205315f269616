// Package proclock implements a process-level advisory lock (spec.md §4.L),
// grounded on original_source/src/process_mutex.cpp: a single instance of a
// backup set is enforced by binding a Unix-domain socket path — a second
// bind on the same path fails as long as the first process holds it, and the
// lock is released by closing the listener (or the holding process dying).
package proclock

import (
	"path/filepath"

	"github.com/quietloop/vaultpipe/internal/coreerr"
	"github.com/quietloop/vaultpipe/internal/xlog"
	"github.com/quietloop/vaultpipe/stage"
)

// Lock is a process-wide mutex backed by a Unix socket bind. The zero value
// is not usable; construct with New.
type Lock struct {
	name   string
	sock   *stage.Socket
	locked bool
}

// New returns a lock bound to name. A relative name is resolved against the
// current working directory, matching the source's get_current_dir_name
// fallback.
func New(name string) (*Lock, error) {
	path := name
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Resource, "proclock.new", err)
		}
		path = abs
	}
	return &Lock{name: path, sock: stage.NewUnixSocket(path, true)}, nil
}

// Lock acquires the lock by binding and listening on the socket path. It
// fails if already held by this instance, or if another process holds it.
func (l *Lock) Lock() error {
	if l.locked {
		return coreerr.New(coreerr.Busy, "proclock.lock")
	}
	if err := l.sock.Listen(0); err != nil {
		return coreerr.Wrap(coreerr.Busy, "proclock.lock", err)
	}
	l.locked = true
	xlog.Verbosef(2, xlog.ModuleProclock, "%s locked", l.name)
	return nil
}

// Unlock releases the lock, unlinking the socket path.
func (l *Lock) Unlock() error {
	if !l.locked {
		return coreerr.New(coreerr.InvalidUse, "proclock.unlock")
	}
	l.locked = false
	xlog.Verbosef(2, xlog.ModuleProclock, "%s unlocked", l.name)
	return l.sock.Release()
}

// Path returns the socket path backing the lock.
func (l *Lock) Path() string { return l.name }
