// File: clinic/supervisor.go
package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lguibr/clinic/bollywood"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Role is the part an actor plays in the pipeline.
type Role int

const (
	RoleReceptionist Role = iota
	RoleDoctor
	RoleNurse
	RolePatient
)

func (r Role) String() string {
	switch r {
	case RoleReceptionist:
		return "receptionist"
	case RoleDoctor:
		return "doctor"
	case RoleNurse:
		return "nurse"
	case RolePatient:
		return "patient"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Identity is the role and index an actor is spawned with.
type Identity struct {
	Role Role `json:"role"`
	ID   int  `json:"id"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s-%d", i.Role, i.ID)
}

// ActorResult is the final status of one actor.
type ActorResult struct {
	Identity Identity
	Err      error
}

// ActorFinished is sent by an actor to its supervisor when its script returns.
type ActorFinished struct {
	Result ActorResult
}

// roster lists every actor of a run.
func (c *Clinic) roster() []Identity {
	ids := make([]Identity, 0, 1+2*c.doctors+c.patients)
	ids = append(ids, Identity{Role: RoleReceptionist})
	for d := 0; d < c.doctors; d++ {
		ids = append(ids, Identity{Role: RoleDoctor, ID: d})
	}
	for n := 0; n < c.doctors; n++ {
		ids = append(ids, Identity{Role: RoleNurse, ID: n})
	}
	for p := 0; p < c.patients; p++ {
		ids = append(ids, Identity{Role: RolePatient, ID: p})
	}
	return ids
}

// superviseActors spawns the supervisor and one actor per roster entry, opens
// the start gate once every spawn succeeded, and blocks until every actor reported.
func (c *Clinic) superviseActors(logger *zap.Logger, abort context.CancelCauseFunc) ([]ActorResult, error) {
	engine := c.newEngine(logger)
	defer engine.Shutdown(c.timeout)

	roster := c.roster()
	expected := make(map[string]Identity, len(roster))
	for _, id := range roster {
		expected[id.String()] = id
	}

	done := make(chan []ActorResult, 1)
	supervisorPID := engine.Spawn(bollywood.NewProps(newSupervisorProducer(expected, abort, done, logger)).
		WithName("supervisor").
		WithMailboxSize(2*len(roster) + 1))
	if supervisorPID == nil {
		return nil, fmt.Errorf("%w: supervisor", ErrSpawn)
	}

	for _, id := range roster {
		pid := engine.Spawn(bollywood.NewProps(newStageActorProducer(c, id, supervisorPID)).
			WithName(id.String()).
			WithSupervisor(supervisorPID))
		if pid == nil {
			err := fmt.Errorf("%w: %s", ErrSpawn, id)
			abort(err)
			return nil, err
		}
	}
	close(c.begin)

	return <-done, nil
}

// stageActor runs the script of one role to completion inside its Started handler.
type stageActor struct {
	clinic     *Clinic
	identity   Identity
	supervisor *bollywood.PID
}

func newStageActorProducer(c *Clinic, identity Identity, supervisor *bollywood.PID) bollywood.Producer {
	return func() bollywood.Actor {
		return &stageActor{clinic: c, identity: identity, supervisor: supervisor}
	}
}

func (a *stageActor) Receive(ctx bollywood.Context) {
	switch ctx.Message().(type) {
	case bollywood.Started:
		err := a.clinic.perform(a.identity)
		ctx.Engine().Send(a.supervisor, ActorFinished{Result: ActorResult{Identity: a.identity, Err: err}}, ctx.Self())
		ctx.Engine().Stop(ctx.Self())
	case bollywood.Stopping, bollywood.Stopped:
	}
}

// perform waits for the start gate and runs the script of the given role.
// An open gate wins over an aborted run.
func (c *Clinic) perform(id Identity) error {
	select {
	case <-c.begin:
	default:
		select {
		case <-c.begin:
		case <-c.runCtx.Done():
			return fmt.Errorf("not started: %w", context.Cause(c.runCtx))
		}
	}
	switch id.Role {
	case RolePatient:
		return c.visit(id.ID)
	case RoleReceptionist:
		return c.receive()
	case RoleNurse:
		return c.triage(id.ID)
	case RoleDoctor:
		return c.consult(id.ID)
	}
	return fmt.Errorf("%w: unknown role %d", ErrProtocol, int(id.Role))
}

// supervisorActor collects one result per expected actor. The first failure
// cancels the run so every blocked actor unwinds.
type supervisorActor struct {
	expected map[string]Identity
	results  map[string]ActorResult
	abort    context.CancelCauseFunc
	done     chan<- []ActorResult
	logger   *zap.Logger
	reported bool
}

func newSupervisorProducer(expected map[string]Identity, abort context.CancelCauseFunc, done chan<- []ActorResult, logger *zap.Logger) bollywood.Producer {
	return func() bollywood.Actor {
		return &supervisorActor{
			expected: expected,
			results:  make(map[string]ActorResult, len(expected)),
			abort:    abort,
			done:     done,
			logger:   logger,
		}
	}
}

func (a *supervisorActor) Receive(ctx bollywood.Context) {
	switch msg := ctx.Message().(type) {
	case ActorFinished:
		a.record(ctx.Sender(), msg.Result)
	case bollywood.Failure:
		a.record(msg.Who, ActorResult{
			Identity: a.expected[msg.Who.String()],
			Err:      fmt.Errorf("%w: panic: %v", ErrAbnormalTermination, msg.Reason),
		})
	case bollywood.Started, bollywood.Stopping, bollywood.Stopped:
	default:
		a.logger.Warn("supervisor received unknown message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *supervisorActor) record(sender *bollywood.PID, result ActorResult) {
	if sender == nil {
		a.logger.Warn("actor result without sender", zap.Stringer("identity", result.Identity))
		return
	}
	identity, ok := a.expected[sender.ID]
	if !ok {
		a.logger.Warn("result from unknown actor", zap.String("pid", sender.ID))
		return
	}
	if _, seen := a.results[sender.ID]; seen {
		return
	}
	if result.Identity != identity {
		result = ActorResult{
			Identity: identity,
			Err:      fmt.Errorf("%w: %s reported as %s", ErrAbnormalTermination, identity, result.Identity),
		}
	}
	a.results[sender.ID] = result
	if result.Err != nil {
		a.logger.Debug("actor failed", zap.Stringer("identity", identity), zap.Error(result.Err))
		a.abort(fmt.Errorf("%s: %w", identity, result.Err))
	}

	if len(a.results) == len(a.expected) && !a.reported {
		a.reported = true
		a.done <- a.sorted()
	}
}

func (a *supervisorActor) sorted() []ActorResult {
	results := make([]ActorResult, 0, len(a.results))
	for _, r := range a.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Identity.Role != results[j].Identity.Role {
			return results[i].Identity.Role < results[j].Identity.Role
		}
		return results[i].Identity.ID < results[j].Identity.ID
	})
	return results
}

// collectFailures aggregates every actor failure of an aborted run. Waits
// interrupted by the abort itself are consequences, not causes, and are skipped.
func collectFailures(results []ActorResult, cause error) error {
	var err error
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if cause != nil && (errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, cause)) {
			continue
		}
		err = multierr.Append(err, fmt.Errorf("%s: %w", r.Identity, r.Err))
	}
	if err == nil && cause != nil {
		return cause
	}
	return err
}
