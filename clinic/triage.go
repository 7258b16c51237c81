package clinic

import "fmt"

// joinQueue tells the assigned nurse this patient is queued and blocks until
// that nurse escorts it.
func (c *Clinic) joinQueue(patient, nurse int) error {
	if err := c.joined[nurse].Post(); err != nil {
		return err
	}
	return c.assigned[patient].Wait(c.runCtx)
}

// triage is the loop of one nurse. The paired doctor must be free before a
// patient is pulled from the queue, so nobody is dequeued with no office ready.
func (c *Clinic) triage(nurse int) error {
	doctor := nurse
	office := c.offices[doctor]
	triaged := c.triagedCount

	for !triaged.Done() {
		if err := office.ready.Wait(triaged.Context()); err != nil {
			_, err = triaged.finished(err)
			return err
		}
		if err := c.joined[nurse].Wait(triaged.Context()); err != nil {
			_, err = triaged.finished(err)
			return err
		}

		patient, ok := c.queues[nurse].pop()
		if !ok {
			return fmt.Errorf("%w: nurse %d signalled with an empty queue", ErrProtocol, nurse)
		}
		if err := office.slot.Occupy(patient); err != nil {
			return err
		}
		if _, err := triaged.Increment(); err != nil {
			return err
		}
		c.emit(Escorted, patient, nurse, doctor)
		if err := c.assigned[patient].Post(); err != nil {
			return err
		}
	}
	return nil
}
