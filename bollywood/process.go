// File: bollywood/process.go
package bollywood

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultMailboxSize = 1024

// process represents the running instance of an actor, including its state and mailbox.
type process struct {
	engine   *Engine
	pid      *PID
	actor    Actor
	mailbox  chan *messageEnvelope
	props    *Props
	stopCh   chan struct{} // Signal to stop the run loop
	stopOnce sync.Once
	stopped  atomic.Bool
}

func newProcess(engine *Engine, pid *PID, props *Props) *process {
	return &process{
		engine:  engine,
		pid:     pid,
		props:   props,
		mailbox: make(chan *messageEnvelope, props.mailboxSize),
		stopCh:  make(chan struct{}),
	}
}

func (p *process) closeStop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// sendMessage sends a message to the actor's mailbox.
func (p *process) sendMessage(message interface{}, sender *PID) {
	// Don't bother sending user messages if already stopped/stopping
	if p.stopped.Load() && !isSystemMessage(message) {
		return
	}

	envelope := &messageEnvelope{
		Sender:  sender,
		Message: message,
	}

	// Non-blocking send; a full mailbox drops the message
	select {
	case p.mailbox <- envelope:
	default:
		p.engine.logger.Warn("mailbox full, dropping message",
			zap.String("pid", p.pid.ID), zap.String("type", fmt.Sprintf("%T", message)))
	}
}

// run is the main loop for the actor process.
func (p *process) run() {
	var stoppingInvoked bool

	defer func() {
		p.stopped.Store(true)
		if p.actor != nil {
			if !stoppingInvoked {
				p.invokeReceive(Stopping{}, nil)
			}
			p.invokeReceive(Stopped{}, nil)
		}
		p.engine.remove(p.pid)
	}()

	// Producer panics never reach invokeReceive, so they are recovered here
	defer func() {
		if r := recover(); r != nil {
			p.fail(r)
		}
	}()

	p.actor = p.props.Produce()
	if p.actor == nil {
		panic(fmt.Sprintf("actor %s producer returned nil actor", p.pid.ID))
	}
	p.invokeReceive(Started{}, nil)

	for {
		select {
		case <-p.stopCh:
			p.stopped.Store(true)
			if !stoppingInvoked {
				p.invokeReceive(Stopping{}, nil)
				stoppingInvoked = true
			}
			return

		case envelope := <-p.mailbox:
			switch msg := envelope.Message.(type) {
			case Stopping:
				if p.stopped.CompareAndSwap(false, true) {
					p.invokeReceive(msg, envelope.Sender)
					stoppingInvoked = true
					p.closeStop()
				}
			case Stopped:
				// Delivered by the deferred cleanup only
				p.engine.logger.Warn("unexpected Stopped message via mailbox", zap.String("pid", p.pid.ID))
			default:
				if p.stopped.Load() {
					continue
				}
				p.invokeReceive(envelope.Message, envelope.Sender)
			}
		}
	}
}

// invokeReceive calls the actor's Receive method within a protected context.
func (p *process) invokeReceive(msg interface{}, sender *PID) {
	ctx := &context{
		engine:  p.engine,
		self:    p.pid,
		sender:  sender,
		message: msg,
	}

	defer func() {
		if r := recover(); r != nil {
			p.fail(r)
		}
	}()
	p.actor.Receive(ctx)
}

// fail stops the process after a panic and notifies the supervisor, if any.
func (p *process) fail(reason interface{}) {
	p.engine.logger.Error("actor panicked",
		zap.String("pid", p.pid.ID),
		zap.Any("reason", reason),
		zap.ByteString("stack", debug.Stack()))
	p.stopped.Store(true)
	p.closeStop()
	if p.props.supervisor != nil {
		p.engine.Send(p.props.supervisor, Failure{Who: p.pid, Reason: reason}, p.pid)
	}
}
