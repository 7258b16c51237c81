// File: clinic/clinic.go

// Package clinic runs a clinic visit as a three-stage pipeline. Patients,
// one receptionist, N nurses and N doctors (paired 1:1 with the nurses) are
// independent actors that hand each patient from reception to triage to
// consultation using only counting and binary signals.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lguibr/clinic/bollywood"
	"github.com/lguibr/clinic/sema"
	"github.com/lguibr/clinic/utils"
	"go.uber.org/zap"
)

var (
	// ErrProtocol marks a violated synchronization invariant.
	ErrProtocol = errors.New("protocol invariant violated")
	// ErrAlreadyRun is returned when Run is called twice on the same Clinic.
	ErrAlreadyRun = errors.New("clinic already run")
	// ErrSpawn is returned when an actor could not be started.
	ErrSpawn = errors.New("actor could not be spawned")
	// ErrAbnormalTermination marks an actor whose final status does not match its identity.
	ErrAbnormalTermination = errors.New("actor terminated abnormally")
)

// Options configures a Clinic.
type Options struct {
	Doctors         int // also the nurse count
	Patients        int
	Generator       utils.IntGenerator // picks a nurse in [0, Doctors-1]; defaults to a clock-seeded Random
	Sink            Sink               // diagnostic sink; defaults to discarding events
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

// office is a doctor's consultation room.
type office struct {
	ready   *sema.Signal // binary, 1: doctor free
	symptom *sema.Signal // binary, 0: patient entered
	advice  *sema.Signal // binary, 0: doctor advised
	left    *sema.Signal // binary, 0: patient departed
	slot    *slot        // patient currently inside
}

// Clinic owns every piece of shared state of one run. All signals are built
// before any actor starts and never resized.
type Clinic struct {
	doctors  int
	patients int
	rng      utils.IntGenerator
	sink     Sink
	logger   *zap.Logger
	timeout  time.Duration

	newEngine func(*zap.Logger) *bollywood.Engine

	seq     atomic.Uint64
	started atomic.Bool
	runCtx  context.Context
	begin   chan struct{}

	// Registration handoff
	admission *sema.Signal // binary, 1
	checkIn   *sema.Signal // counting, 0
	regDone   *sema.Signal // counting, 0
	regSlot   *slot

	// Nurse-queue handoff
	queues   []*nurseQueue
	joined   sema.Array // per nurse, counting
	assigned sema.Array // per patient, binary

	// Doctor-consultation handoff
	offices []*office

	// assignedNurse[p] is written once by the receptionist before it posts
	// registration done; the patient reads it only after consuming that post.
	assignedNurse []int

	registeredCount *stageCounter
	triagedCount    *stageCounter
	consultedCount  *stageCounter
}

// New builds a Clinic and all of its signals.
func New(opts Options) (*Clinic, error) {
	if opts.Doctors < 1 {
		return nil, fmt.Errorf("doctors must be at least 1, got %d", opts.Doctors)
	}
	if opts.Patients < 0 {
		return nil, fmt.Errorf("patients must not be negative, got %d", opts.Patients)
	}
	c := &Clinic{
		doctors:       opts.Doctors,
		patients:      opts.Patients,
		rng:           opts.Generator,
		sink:          opts.Sink,
		logger:        opts.Logger,
		timeout:       opts.ShutdownTimeout,
		newEngine:     bollywood.NewEngine,
		begin:         make(chan struct{}),
		regSlot:       newSlot("registration slot"),
		queues:        make([]*nurseQueue, opts.Doctors),
		offices:       make([]*office, opts.Doctors),
		assignedNurse: make([]int, opts.Patients),
	}
	if c.rng == nil {
		c.rng = utils.NewRandom(0)
	}
	if c.sink == nil {
		c.sink = discardSink{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.timeout <= 0 {
		c.timeout = 2 * time.Second
	}

	// Counting signals never hold more than one token per patient
	limit := max(opts.Patients, 1)

	var err error
	if c.admission, err = sema.NewBinary("admission gate", 1); err != nil {
		return nil, err
	}
	if c.checkIn, err = sema.New("check-in ready", 0, limit); err != nil {
		return nil, err
	}
	if c.regDone, err = sema.New("registration done", 0, limit); err != nil {
		return nil, err
	}
	if c.joined, err = sema.NewArray("patient-joined", opts.Doctors, 0, limit); err != nil {
		return nil, err
	}
	if c.assigned, err = sema.NewArray("nurse-assigned-you", opts.Patients, 0, 1); err != nil {
		return nil, err
	}
	for i := range c.queues {
		c.queues[i] = &nurseQueue{}
		if c.offices[i], err = newOffice(i); err != nil {
			return nil, err
		}
	}
	for i := range c.assignedNurse {
		c.assignedNurse[i] = -1
	}
	return c, nil
}

func newOffice(doctor int) (*office, error) {
	o := &office{slot: newSlot(fmt.Sprintf("doctor slot[%d]", doctor))}
	var err error
	if o.ready, err = sema.NewBinary(fmt.Sprintf("doctor-ready[%d]", doctor), 1); err != nil {
		return nil, err
	}
	if o.symptom, err = sema.NewBinary(fmt.Sprintf("symptom[%d]", doctor), 0); err != nil {
		return nil, err
	}
	if o.advice, err = sema.NewBinary(fmt.Sprintf("advice[%d]", doctor), 0); err != nil {
		return nil, err
	}
	if o.left, err = sema.NewBinary(fmt.Sprintf("patient-left[%d]", doctor), 0); err != nil {
		return nil, err
	}
	return o, nil
}

// Doctors returns the doctor count, equal to the nurse count.
func (c *Clinic) Doctors() int { return c.doctors }

// Patients returns the patient count.
func (c *Clinic) Patients() int { return c.patients }

func (c *Clinic) emit(kind EventKind, patient, nurse, doctor int) {
	c.sink.Record(Event{
		Seq:     c.seq.Add(1),
		At:      time.Now(),
		Kind:    kind,
		Patient: patient,
		Nurse:   nurse,
		Doctor:  doctor,
	})
}

// Visit is the per-patient data retained for the patient's whole life.
type Visit struct {
	Patient int `json:"patient"`
	Nurse   int `json:"nurse"`
	Doctor  int `json:"doctor"`
}

// Report summarizes a finished run.
type Report struct {
	RunID      string        `json:"runId"`
	Doctors    int           `json:"doctors"`
	Nurses     int           `json:"nurses"`
	Patients   int           `json:"patients"`
	Registered int           `json:"registered"`
	Triaged    int           `json:"triaged"`
	Consulted  int           `json:"consulted"`
	Visits     []Visit       `json:"visits"`
	Actors     []ActorResult `json:"-"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Run starts every actor, waits until each has finished, and returns the report.
// It may be called once. A failed signal operation, a panicking actor or an
// actor reporting the wrong identity aborts the whole run.
func (c *Clinic) Run(ctx context.Context) (*Report, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	start := time.Now()
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run", runID))
	logger.Info(fmt.Sprintf("Run with %d patients, %d nurses, %d doctors", c.patients, c.doctors, c.doctors))

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	c.runCtx = runCtx
	c.registeredCount = newStageCounter(runCtx, "registeredCount", c.patients)
	c.triagedCount = newStageCounter(runCtx, "triagedCount", c.patients)
	c.consultedCount = newStageCounter(runCtx, "consultedCount", c.patients)

	results, err := c.superviseActors(logger, abort)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      runID,
		Doctors:    c.doctors,
		Nurses:     c.doctors,
		Patients:   c.patients,
		Registered: c.registeredCount.Value(),
		Triaged:    c.triagedCount.Value(),
		Consulted:  c.consultedCount.Value(),
		Visits:     make([]Visit, c.patients),
		Actors:     results,
		Elapsed:    time.Since(start),
	}
	for p, nurse := range c.assignedNurse {
		report.Visits[p] = Visit{Patient: p, Nurse: nurse, Doctor: nurse}
	}

	if err := collectFailures(results, context.Cause(runCtx)); err != nil {
		logger.Error("run aborted", zap.Error(err), zap.Dict("signals", c.heldSignals()...))
		return report, err
	}
	logger.Info("run complete",
		zap.Int("registered", report.Registered),
		zap.Int("triaged", report.Triaged),
		zap.Int("consulted", report.Consulted),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// heldSignals lists every signal still holding tokens as "value/limit".
func (c *Clinic) heldSignals() []zap.Field {
	signals := []*sema.Signal{c.admission, c.checkIn, c.regDone}
	signals = append(signals, c.joined...)
	signals = append(signals, c.assigned...)
	for _, o := range c.offices {
		signals = append(signals, o.ready, o.symptom, o.advice, o.left)
	}

	var fields []zap.Field
	for _, s := range signals {
		if v := s.Value(); v > 0 {
			fields = append(fields, zap.String(s.Name(), fmt.Sprintf("%d/%d", v, s.Limit())))
		}
	}
	return fields
}
