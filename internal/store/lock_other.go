//go:build !unix

package store

import (
	"context"
	"sync"
)

// Without flock the lock only excludes writers inside this process.
var processLocks sync.Map

type fileLock struct {
	mu *sync.Mutex
}

func acquireLock(_ context.Context, path string) (*fileLock, error) {
	v, _ := processLocks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return &fileLock{mu: mu}, nil
}

func (l *fileLock) release() {
	l.mu.Unlock()
}
