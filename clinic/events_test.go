package clinic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvent_Message(t *testing.T) {
	testCases := []struct {
		event Event
		want  string
	}{
		{Event{Kind: Arrived, Patient: 3, Nurse: -1, Doctor: -1}, "Patient 3 enters waiting room, waits for receptionist"},
		{Event{Kind: Seated, Patient: 3, Nurse: 1, Doctor: -1}, "Patient 3 leaves receptionist and sits in waiting room"},
		{Event{Kind: Escorted, Patient: 3, Nurse: 1, Doctor: 1}, "Nurse 1 takes patient 3 to doctor's office"},
		{Event{Kind: Advised, Patient: 3, Nurse: 1, Doctor: 1}, "Doctor 1 advises patient 3"},
		{Event{Kind: Departed, Patient: 3, Nurse: 1, Doctor: 1}, "Patient 3 receives advice from doctor 1, leaves"},
		{Event{Kind: EventKind(42)}, "EventKind(42)"},
	}
	for _, tc := range testCases {
		t.Run(tc.event.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.event.Message())
		})
	}
}

func TestEventKind_JSONByName(t *testing.T) {
	payload, err := json.Marshal(Event{Seq: 7, Kind: DoctorFreed, Patient: 2, Nurse: 0, Doctor: 0})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"kind":"doctorFreed"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, DoctorFreed, decoded.Kind)
	assert.Equal(t, uint64(7), decoded.Seq)

	var kind EventKind
	assert.Error(t, kind.UnmarshalText([]byte("sneezed")))
}

func TestMultiSink_FansOutInOrder(t *testing.T) {
	var order []string
	first := SinkFunc(func(Event) { order = append(order, "first") })
	second := SinkFunc(func(Event) { order = append(order, "second") })

	MultiSink{first, nil, second}.Record(Event{Kind: Arrived})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRecorder_OrdersBySequence(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Seq: 3, Kind: Seated})
	r.Record(Event{Seq: 1, Kind: Arrived})
	r.Record(Event{Seq: 2, Kind: CheckedIn})

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{events[0].Seq, events[1].Seq, events[2].Seq})
	assert.Len(t, r.Kind(CheckedIn), 1)
}

func TestLogSink_WritesOneLinePerEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	sink.Record(Event{Seq: 1, Kind: Arrived, Patient: 0, Nurse: -1, Doctor: -1})
	sink.Record(Event{Seq: 2, Kind: Escorted, Patient: 0, Nurse: 1, Doctor: 1})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Patient 0 enters waiting room, waits for receptionist", entries[0].Message)
	assert.NotContains(t, entries[0].ContextMap(), "nurse", "unknown nurse is omitted")
	assert.Equal(t, int64(1), entries[1].ContextMap()["nurse"])
	assert.Equal(t, "escorted", entries[1].ContextMap()["kind"])
}
