// File: bollywood/messages.go
package bollywood

// --- System Messages ---

// Started is delivered to an actor once its goroutine is running.
type Started struct{}

// Stopping is sent to an actor to signal it should prepare to stop.
// No more user messages will be delivered after Stopping.
type Stopping struct{}

// Stopped is the final message an actor receives, just before its goroutine exits.
type Stopped struct{}

// Failure is sent to the supervisor of an actor whose Receive panicked.
// The failed actor is stopped; Reason holds the recovered value.
type Failure struct {
	Who    *PID
	Reason interface{}
}

// messageEnvelope wraps a user message with sender information.
type messageEnvelope struct {
	Sender  *PID
	Message interface{}
}

func isSystemMessage(message interface{}) bool {
	switch message.(type) {
	case Stopping, Stopped:
		return true
	}
	return false
}
