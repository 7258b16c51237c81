package bollywood

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine manages the lifecycle and message dispatching for actors.
type Engine struct {
	pidCounter uint64
	actors     map[string]*process
	mu         sync.RWMutex // Protects the actors map
	stopping   atomic.Bool  // Indicates if the engine is shutting down
	logger     *zap.Logger
}

// NewEngine creates a new actor engine. A nil logger discards engine diagnostics.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		actors: make(map[string]*process),
		logger: logger.Named("bollywood"),
	}
}

// nextPID generates a unique process ID.
func (e *Engine) nextPID() *PID {
	id := atomic.AddUint64(&e.pidCounter, 1)
	return &PID{ID: fmt.Sprintf("actor-%d", id)}
}

// Spawn creates and starts a new actor based on the provided Props.
// It returns the PID of the newly created actor, or nil when the engine is
// stopping or the requested name is taken.
func (e *Engine) Spawn(props *Props) *PID {
	if e.stopping.Load() {
		e.logger.Warn("engine is stopping, cannot spawn new actors")
		return nil
	}

	pid := e.nextPID()
	if props.name != "" {
		pid = &PID{ID: props.name}
	}
	proc := newProcess(e, pid, props)

	e.mu.Lock()
	if _, taken := e.actors[pid.ID]; taken {
		e.mu.Unlock()
		e.logger.Warn("actor name already in use", zap.String("pid", pid.ID))
		return nil
	}
	e.actors[pid.ID] = proc
	e.mu.Unlock()

	go proc.run() // Started is delivered by the run loop itself

	return pid
}

// Send delivers a message to the actor identified by the PID.
// sender can be nil if the message originates from outside the actor system.
func (e *Engine) Send(pid *PID, message interface{}, sender *PID) {
	if pid == nil {
		return
	}
	// Allow system messages during shutdown for cleanup
	if e.stopping.Load() && !isSystemMessage(message) {
		return
	}

	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()

	if ok {
		proc.sendMessage(message, sender)
	} else {
		e.logger.Debug("actor not found, dropping message",
			zap.String("pid", pid.ID), zap.String("type", fmt.Sprintf("%T", message)))
	}
}

// Stop requests an actor to stop processing messages and shut down.
// It sends the Stopping message and also directly signals the actor's stop channel,
// so the actor terminates even if its mailbox is full.
func (e *Engine) Stop(pid *PID) {
	if pid == nil {
		return
	}
	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()

	if ok {
		proc.sendMessage(Stopping{}, nil)
		proc.closeStop()
	}
}

// Alive reports whether the engine still tracks the actor.
func (e *Engine) Alive(pid *PID) bool {
	if pid == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.actors[pid.ID]
	return ok
}

// remove removes an actor process from the engine's tracking.
// This is called internally by the process when it fully stops.
func (e *Engine) remove(pid *PID) {
	e.mu.Lock()
	delete(e.actors, pid.ID)
	e.mu.Unlock()
}

// Shutdown stops all actors and waits for them to terminate gracefully.
func (e *Engine) Shutdown(timeout time.Duration) {
	if !e.stopping.CompareAndSwap(false, true) {
		e.logger.Debug("engine already shutting down")
		return
	}

	e.mu.RLock()
	pidsToStop := make([]*PID, 0, len(e.actors))
	for _, proc := range e.actors {
		pidsToStop = append(pidsToStop, proc.pid)
	}
	e.mu.RUnlock()

	e.logger.Debug("engine shutdown initiated", zap.Int("actors", len(pidsToStop)))
	for _, pid := range pidsToStop {
		e.Stop(pid)
	}

	// Wait for actors to be removed (simple polling)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		e.mu.RLock()
		remaining := len(e.actors)
		e.mu.RUnlock()
		if remaining == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	e.mu.Lock()
	if len(e.actors) > 0 {
		remainingActors := make([]string, 0, len(e.actors))
		for pidStr := range e.actors {
			remainingActors = append(remainingActors, pidStr)
		}
		e.logger.Warn("engine shutdown timeout, actors did not stop gracefully",
			zap.Strings("remaining", remainingActors))
		// Force remove remaining actors (might leak goroutines if actors are stuck)
		e.actors = make(map[string]*process)
	}
	e.mu.Unlock()

	e.logger.Debug("engine shutdown complete")
}
