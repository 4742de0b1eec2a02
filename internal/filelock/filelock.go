// Package filelock provides a scoped exclusive advisory lock on a named
// file, used to serialize materialization of sibling cache entries across
// goroutines and across processes on the same host.
package filelock

import (
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held advisory lock on a file. The lock file itself is never
// removed; only the in-memory hold is released.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if necessary) the file at path and blocks until an
// exclusive advisory lock on it is held. Two goroutines in this process, or
// two processes on the same host, racing on Acquire for the same path are
// serialized equivalently: the loser blocks until the winner calls Release.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}

	return &Lock{f: f}, nil
}

// Release unlocks and closes the underlying file descriptor. It is safe to
// call from a defer immediately after a successful Acquire; any error,
// panic-recovery, or context cancellation in between still reaches this
// call via the normal defer unwind, so the lock is never leaked.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
