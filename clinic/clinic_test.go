// File: clinic/clinic_test.go
package clinic

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lguibr/clinic/bollywood"
	"github.com/lguibr/clinic/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const runTimeout = 10 * time.Second

// runClinic runs a clinic and fails the test instead of hanging on a deadlock.
func runClinic(t *testing.T, ctx context.Context, c *Clinic) (*Report, error) {
	t.Helper()
	type outcome struct {
		report *Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := c.Run(ctx)
		done <- outcome{report, err}
	}()
	select {
	case out := <-done:
		return out.report, out.err
	case <-time.After(runTimeout):
		t.Fatalf("clinic with %d doctors and %d patients did not terminate within %s", c.Doctors(), c.Patients(), runTimeout)
		return nil, nil
	}
}

func newTestClinic(t *testing.T, doctors, patients int, gen utils.IntGenerator) (*Clinic, *Recorder) {
	t.Helper()
	recorder := NewRecorder()
	c, err := New(Options{
		Doctors:         doctors,
		Patients:        patients,
		Generator:       gen,
		Sink:            recorder,
		ShutdownTimeout: time.Second,
	})
	require.NoError(t, err)
	return c, recorder
}

func TestNew_RejectsInvalidPopulation(t *testing.T) {
	_, err := New(Options{Doctors: 0, Patients: 3})
	assert.Error(t, err)
	_, err = New(Options{Doctors: 2, Patients: -1})
	assert.Error(t, err)
}

func TestRun_EveryPatientPassesEveryStageExactlyOnce(t *testing.T) {
	testCases := []struct {
		doctors, patients int
	}{
		{1, 0}, {1, 1}, {1, 3}, {2, 1}, {2, 10}, {3, 15}, {5, 40}, {4, 120},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d doctors %d patients", tc.doctors, tc.patients), func(t *testing.T) {
			c, recorder := newTestClinic(t, tc.doctors, tc.patients, utils.NewRandom(int64(tc.patients+1)))

			report, err := runClinic(t, context.Background(), c)
			require.NoError(t, err)
			require.NotNil(t, report)

			assert.NotEmpty(t, report.RunID)
			assert.Equal(t, tc.patients, report.Registered)
			assert.Equal(t, tc.patients, report.Triaged)
			assert.Equal(t, tc.patients, report.Consulted)
			assert.Equal(t, tc.doctors, report.Nurses)
			require.Len(t, report.Visits, tc.patients)
			assert.Len(t, report.Actors, 1+2*tc.doctors+tc.patients)
			for _, r := range report.Actors {
				assert.NoError(t, r.Err, r.Identity.String())
			}

			for p, visit := range report.Visits {
				assert.Equal(t, p, visit.Patient)
				assert.GreaterOrEqual(t, visit.Nurse, 0)
				assert.Less(t, visit.Nurse, tc.doctors)
				assert.Equal(t, visit.Nurse, visit.Doctor, "doctor is paired with the assigned nurse")
			}

			for _, kind := range []EventKind{Arrived, CheckedIn, Registered, Seated, Escorted, SymptomsReported, Advised, Departed, DoctorFreed} {
				seen := make(map[int]int)
				for _, ev := range recorder.Kind(kind) {
					seen[ev.Patient]++
				}
				assert.Len(t, seen, tc.patients, "kind %s", kind)
				for p, n := range seen {
					assert.Equal(t, 1, n, "patient %d saw %s %d times", p, kind, n)
				}
			}

			for _, ev := range recorder.Kind(Escorted) {
				assert.Equal(t, report.Visits[ev.Patient].Nurse, ev.Nurse, "patient %d escorted by the wrong nurse", ev.Patient)
			}
		})
	}
}

func TestRun_AdmissionGateAdmitsOnePatientAtATime(t *testing.T) {
	c, recorder := newTestClinic(t, 3, 60, utils.NewRandom(3))
	_, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	holder := -1
	for _, ev := range recorder.Events() {
		switch ev.Kind {
		case CheckedIn:
			require.Equal(t, -1, holder, "patient %d entered registration while patient %d held the gate", ev.Patient, holder)
			holder = ev.Patient
		case Seated:
			require.Equal(t, ev.Patient, holder, "patient %d left registration it did not hold", ev.Patient)
			holder = -1
		case Registered:
			require.Equal(t, holder, ev.Patient, "receptionist registered a patient not holding the gate")
		}
	}
	assert.Equal(t, -1, holder)
}

func TestRun_NurseQueuesAreFIFO(t *testing.T) {
	const doctors = 3
	c, recorder := newTestClinic(t, doctors, 90, utils.NewRandom(11))
	_, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	appended := make([][]int, doctors)
	escorted := make([][]int, doctors)
	for _, ev := range recorder.Events() {
		switch ev.Kind {
		case Registered:
			appended[ev.Nurse] = append(appended[ev.Nurse], ev.Patient)
		case Escorted:
			escorted[ev.Nurse] = append(escorted[ev.Nurse], ev.Patient)
		}
	}
	for n := 0; n < doctors; n++ {
		assert.Equal(t, appended[n], escorted[n], "nurse %d escorted out of queue order", n)
	}
}

func TestRun_DoctorServesOnePatientAtATime(t *testing.T) {
	const doctors = 2
	c, recorder := newTestClinic(t, doctors, 50, utils.NewRandom(5))
	_, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	inside := make([]int, doctors)
	stage := make([]EventKind, doctors)
	for d := range inside {
		inside[d] = -1
	}
	for _, ev := range recorder.Events() {
		switch ev.Kind {
		case Escorted:
			require.Equal(t, -1, inside[ev.Doctor], "doctor %d got patient %d while serving %d", ev.Doctor, ev.Patient, inside[ev.Doctor])
			inside[ev.Doctor] = ev.Patient
			stage[ev.Doctor] = Escorted
		case SymptomsReported, Advised, Departed:
			require.Equal(t, inside[ev.Doctor], ev.Patient, "%s for patient %d outside doctor %d's consultation", ev.Kind, ev.Patient, ev.Doctor)
			require.Equal(t, ev.Kind-1, stage[ev.Doctor], "doctor %d: %s out of order", ev.Doctor, ev.Kind)
			stage[ev.Doctor] = ev.Kind
		case DoctorFreed:
			require.Equal(t, inside[ev.Doctor], ev.Patient)
			require.Equal(t, Departed, stage[ev.Doctor], "doctor %d freed before patient %d left", ev.Doctor, ev.Patient)
			inside[ev.Doctor] = -1
		}
	}
	for d := range inside {
		assert.Equal(t, -1, inside[d], "doctor %d never freed", d)
	}
}

func TestRun_ZeroPatientsTerminatesWithoutWork(t *testing.T) {
	c, recorder := newTestClinic(t, 3, 0, utils.NewRandom(1))
	report, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Registered)
	assert.Equal(t, 0, report.Triaged)
	assert.Equal(t, 0, report.Consulted)
	assert.Empty(t, report.Visits)
	assert.Empty(t, recorder.Events(), "no actor work should be observed")
}

func TestRun_ThreePatientsOneNurse(t *testing.T) {
	c, recorder := newTestClinic(t, 1, 3, utils.NewRandom(9))
	report, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	registered := recorder.Kind(Registered)
	require.Len(t, registered, 3)
	escorted := recorder.Kind(Escorted)
	require.Len(t, escorted, 3)
	for i := range registered {
		assert.Equal(t, 0, registered[i].Nurse)
		assert.Equal(t, registered[i].Patient, escorted[i].Patient, "single queue keeps registration order")
	}
	assert.Len(t, recorder.Kind(Departed), 3)
	assert.Equal(t, 3, report.Consulted)
}

func TestRun_OnePatientTwoNursesFixedAssignment(t *testing.T) {
	c, recorder := newTestClinic(t, 2, 1, utils.Fixed(1))
	report, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, []Visit{{Patient: 0, Nurse: 1, Doctor: 1}}, report.Visits)
	for _, ev := range recorder.Events() {
		assert.NotEqual(t, 0, ev.Nurse, "idle nurse 0 appeared in %s", ev.Kind)
		assert.NotEqual(t, 0, ev.Doctor, "idle doctor 0 appeared in %s", ev.Kind)
	}
	for _, r := range report.Actors {
		assert.NoError(t, r.Err, "%s should terminate normally", r.Identity)
	}
}

func TestRun_CalledTwice(t *testing.T) {
	c, _ := newTestClinic(t, 1, 2, utils.NewRandom(1))
	_, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_GeneratorOutOfRangeAborts(t *testing.T) {
	c, _ := newTestClinic(t, 2, 5, utils.Fixed(7))
	report, err := runClinic(t, context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "receptionist-0")
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Registered)
}

// slowGenerator holds the receptionist long enough for a tampered doctor to fail first.
type slowGenerator struct {
	delay time.Duration
	value int
}

func (g slowGenerator) NextInt(low, high int) int {
	time.Sleep(g.delay)
	return g.value
}

func TestRun_ProtocolViolationAbortsEveryActor(t *testing.T) {
	c, _ := newTestClinic(t, 1, 1, slowGenerator{delay: 100 * time.Millisecond, value: 0})
	// A symptom with nobody in the office
	require.NoError(t, c.offices[0].symptom.Post())

	_, err := runClinic(t, context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "doctor-0")
	assert.Contains(t, err.Error(), "empty office")
}

func TestRun_CancelledContext(t *testing.T) {
	c, _ := newTestClinic(t, 2, 5, utils.NewRandom(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runClinic(t, ctx, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_AssignmentFollowsGeneratorInRegistrationOrder(t *testing.T) {
	c, recorder := newTestClinic(t, 2, 4, utils.NewSequence(0, 1, 1, 0))
	report, err := runClinic(t, context.Background(), c)
	require.NoError(t, err)

	registered := recorder.Kind(Registered)
	require.Len(t, registered, 4)
	nurses := make([]int, len(registered))
	for i, ev := range registered {
		nurses[i] = ev.Nurse
		assert.Equal(t, ev.Nurse, report.Visits[ev.Patient].Nurse)
	}
	assert.Equal(t, []int{0, 1, 1, 0}, nurses)
}

// explodingGenerator panics on the first draw.
type explodingGenerator struct{}

func (explodingGenerator) NextInt(low, high int) int { panic("generator exploded") }

func TestRun_PanicBlamesOnlyThePanickingActor(t *testing.T) {
	for i := 0; i < 20; i++ {
		core, logs := observer.New(zapcore.ErrorLevel)
		c, err := New(Options{
			Doctors:         2,
			Patients:        4,
			Generator:       explodingGenerator{},
			Logger:          zap.New(core),
			ShutdownTimeout: time.Second,
		})
		require.NoError(t, err)

		report, err := runClinic(t, context.Background(), c)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAbnormalTermination)

		failures := multierr.Errors(err)
		require.Len(t, failures, 1, "only the receptionist failed: %v", err)
		assert.Contains(t, failures[0].Error(), "receptionist-0")
		assert.Contains(t, failures[0].Error(), "generator exploded")
		assert.NotContains(t, err.Error(), "not started")

		require.NotNil(t, report)
		assert.Equal(t, 0, report.Registered)

		aborted := logs.FilterMessage("run aborted").All()
		require.Len(t, aborted, 1)
		assert.Contains(t, aborted[0].ContextMap(), "signals")
	}
}

type idleActor struct{}

func (idleActor) Receive(bollywood.Context) {}

func TestRun_SpawnFailureAbortsBeforeAnyActorRuns(t *testing.T) {
	c, recorder := newTestClinic(t, 2, 3, utils.NewRandom(1))
	c.newEngine = func(logger *zap.Logger) *bollywood.Engine {
		engine := bollywood.NewEngine(logger)
		// Takes the name the first nurse is spawned with
		pid := engine.Spawn(bollywood.NewProps(func() bollywood.Actor { return idleActor{} }).WithName("nurse-0"))
		assert.NotNil(t, pid)
		return engine
	}

	report, err := runClinic(t, context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawn)
	assert.Contains(t, err.Error(), "nurse-0")
	assert.Nil(t, report)

	// Actors spawned before the failure never pass the start gate
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recorder.Events())
	assert.Equal(t, 0, c.registeredCount.Value())
}
