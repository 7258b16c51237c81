// File: clinic/events.go
package clinic

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind identifies a stage transition of a visit.
type EventKind int

const (
	Arrived          EventKind = iota // patient enters the waiting room
	CheckedIn                         // patient holds the admission gate and wrote the registration slot
	Registered                        // receptionist assigned a nurse and queued the patient
	Seated                            // patient releases the admission gate
	Escorted                          // nurse dequeued the patient into its doctor's office
	SymptomsReported                  // patient entered the office
	Advised                           // doctor gave advice
	Departed                          // patient left the office
	DoctorFreed                       // doctor cleared its slot and is ready again
)

var eventKindNames = [...]string{
	Arrived:          "arrived",
	CheckedIn:        "checkedIn",
	Registered:       "registered",
	Seated:           "seated",
	Escorted:         "escorted",
	SymptomsReported: "symptomsReported",
	Advised:          "advised",
	Departed:         "departed",
	DoctorFreed:      "doctorFreed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// MarshalText encodes the kind by name in JSON payloads.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *EventKind) UnmarshalText(text []byte) error {
	for i, name := range eventKindNames {
		if name == string(text) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event is one observed stage transition. Nurse and Doctor are -1 when unknown.
type Event struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Kind    EventKind `json:"kind"`
	Patient int       `json:"patient"`
	Nurse   int       `json:"nurse"`
	Doctor  int       `json:"doctor"`
}

// Message renders the event as a console line.
func (e Event) Message() string {
	switch e.Kind {
	case Arrived:
		return fmt.Sprintf("Patient %d enters waiting room, waits for receptionist", e.Patient)
	case CheckedIn:
		return fmt.Sprintf("Patient %d approaches the receptionist", e.Patient)
	case Registered:
		return fmt.Sprintf("Receptionist registers patient %d, assigns nurse %d", e.Patient, e.Nurse)
	case Seated:
		return fmt.Sprintf("Patient %d leaves receptionist and sits in waiting room", e.Patient)
	case Escorted:
		return fmt.Sprintf("Nurse %d takes patient %d to doctor's office", e.Nurse, e.Patient)
	case SymptomsReported:
		return fmt.Sprintf("Patient %d enters doctor %d's office", e.Patient, e.Doctor)
	case Advised:
		return fmt.Sprintf("Doctor %d advises patient %d", e.Doctor, e.Patient)
	case Departed:
		return fmt.Sprintf("Patient %d receives advice from doctor %d, leaves", e.Patient, e.Doctor)
	case DoctorFreed:
		return fmt.Sprintf("Doctor %d is ready for the next patient", e.Doctor)
	}
	return e.Kind.String()
}

// Sink observes events. Implementations must be safe for concurrent use;
// they are called from every actor goroutine and must not block for long.
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Record(ev Event) { f(ev) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Record(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Record(ev)
		}
	}
}

type discardSink struct{}

func (discardSink) Record(Event) {}

// LogSink writes one structured line per event.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ev Event) {
	fields := []zap.Field{zap.Uint64("seq", ev.Seq), zap.Stringer("kind", ev.Kind), zap.Int("patient", ev.Patient)}
	if ev.Nurse >= 0 {
		fields = append(fields, zap.Int("nurse", ev.Nurse))
	}
	if ev.Doctor >= 0 {
		fields = append(fields, zap.Int("doctor", ev.Doctor))
	}
	s.logger.Info(ev.Message(), fields...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events ordered by sequence number.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	events := make([]Event, len(r.events))
	copy(events, r.events)
	r.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events
}

// Kind returns the recorded events of one kind, ordered by sequence number.
func (r *Recorder) Kind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
