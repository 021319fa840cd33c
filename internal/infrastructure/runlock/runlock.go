package runlock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock serializes backup runs against overlapping scheduler invocations.
// The flock is advisory and released automatically if the process dies.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the run lock without blocking. The second return value
// is false when another run already holds it.
func Acquire(path string) (*Lock, bool, error) {
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}

	return &Lock{fl: fl}, true, nil
}

func (l *Lock) Release() error {
	return l.fl.Unlock()
}
