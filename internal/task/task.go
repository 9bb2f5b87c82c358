// Package task runs the long-lived goroutines of remregsd: the HTTP server
// and the register refresh loops.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-remregs/logger"
)

// Func is the body of a task. It returns true to be called again and
// false to end the task.
type Func func(ctx context.Context) bool

// Manager manages the lifecycle of a set of goroutines sharing one
// cancellation context.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.StartInterval("refresh", refresh, time.Second, true)
//	...
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32

	mu        sync.Mutex
	intervals map[string]*time.Ticker
}

// NewManager creates a Manager whose tasks stop when ctx is cancelled or
// Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{
		logger:    l,
		intervals: make(map[string]*time.Ticker),
	}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by all tasks.
func (mgr *Manager) Context() context.Context {
	return mgr.ctx
}

// Start runs fn in a loop until it returns false or the manager stops.
func (mgr *Manager) Start(name string, fn Func) error {
	if err := mgr.checkRunning(name); err != nil {
		return err
	}

	mgr.logger.Debug("task: start", "name", name)
	mgr.spawn(name, func() {
		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
			}

			if !mgr.callWithRecover(name, fn) {
				return
			}
		}
	})

	return nil
}

// StartInterval calls fn every interval until it returns false, the
// interval is stopped or the manager stops. With runNow fn is also called
// once right away, from the new goroutine.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) error {
	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %v for %s", interval, name)
	}

	if err := mgr.checkRunning(name); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)

	mgr.mu.Lock()
	if _, ok := mgr.intervals[name]; ok {
		mgr.mu.Unlock()
		ticker.Stop()

		return fmt.Errorf("task: interval %s already exists", name)
	}
	mgr.intervals[name] = ticker
	mgr.mu.Unlock()

	mgr.logger.Debug("task: start interval", "name", name, "interval", interval, "runNow", runNow)
	mgr.spawn(name, func() {
		defer mgr.removeInterval(name, ticker)

		if runNow && !mgr.callWithRecover(name, fn) {
			return
		}

		for {
			select {
			case <-mgr.ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, fn) {
					return
				}
			}
		}
	})

	return nil
}

// StopInterval stops the interval task called name. The goroutine exits at
// the next manager stop.
func (mgr *Manager) StopInterval(name string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	ticker, ok := mgr.intervals[name]
	if !ok {
		return fmt.Errorf("task: interval %s not found", name)
	}

	ticker.Stop()
	delete(mgr.intervals, name)

	return nil
}

// Stop signals all tasks to terminate.
func (mgr *Manager) Stop() {
	mgr.cancel()
}

// Wait blocks until all tasks have terminated.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) checkRunning(name string) error {
	select {
	case <-mgr.ctx.Done():
		return fmt.Errorf("task: manager stopped, cannot start %s", name)
	default:
		return nil
	}
}

func (mgr *Manager) spawn(name string, body func()) {
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task: terminated", "name", name, "taskCount", mgr.Count())
			mgr.wg.Done()
		}()

		body()
	}()
}

func (mgr *Manager) removeInterval(name string, ticker *time.Ticker) {
	ticker.Stop()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.intervals[name] == ticker {
		delete(mgr.intervals, name)
	}
}

// callWithRecover runs fn, turning a panic into task termination.
func (mgr *Manager) callWithRecover(name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task: panic", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn(mgr.ctx)
}
