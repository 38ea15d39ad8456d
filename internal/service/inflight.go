package service

import (
	"fmt"
	"sync"

	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

// inflightGuard allows one outstanding action per key.
type inflightGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{busy: make(map[string]struct{})}
}

// acquire marks key busy and returns the release func, or ACTION_IN_FLIGHT.
func (g *inflightGuard) acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return nil, appErrors.Clone(appErrors.ErrActionInFlight, fmt.Sprintf("an action on %s is still in progress", key))
	}
	g.busy[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.busy, key)
		g.mu.Unlock()
	}, nil
}
