// File: clinic/reception.go
package clinic

import (
	"fmt"
)

// register runs the patient side of the registration handoff and returns the
// nurse the receptionist assigned.
func (c *Clinic) register(patient int) (int, error) {
	c.emit(Arrived, patient, -1, -1)

	// At most one patient is mid-registration
	if err := c.admission.Wait(c.runCtx); err != nil {
		return -1, err
	}
	if err := c.regSlot.Occupy(patient); err != nil {
		return -1, err
	}
	c.emit(CheckedIn, patient, -1, -1)
	if err := c.checkIn.Post(); err != nil {
		return -1, err
	}

	// The gate is released only after this patient consumed its own done signal
	if err := c.regDone.Wait(c.runCtx); err != nil {
		return -1, err
	}
	nurse := c.assignedNurse[patient]
	c.emit(Seated, patient, nurse, -1)
	if err := c.admission.Post(); err != nil {
		return -1, err
	}
	return nurse, nil
}

// receive is the receptionist loop: one patient at a time, in gate order.
func (c *Clinic) receive() error {
	for !c.registeredCount.Done() {
		if err := c.checkIn.Wait(c.runCtx); err != nil {
			return err
		}
		patient, err := c.regSlot.Take()
		if err != nil {
			return err
		}
		if patient < 0 || patient >= c.patients {
			return fmt.Errorf("%w: registration slot holds unknown patient %d", ErrProtocol, patient)
		}
		if c.assignedNurse[patient] != -1 {
			return fmt.Errorf("%w: patient %d registered twice", ErrProtocol, patient)
		}

		nurse := c.rng.NextInt(0, c.doctors-1)
		if nurse < 0 || nurse >= c.doctors {
			return fmt.Errorf("%w: generator returned nurse %d outside [0, %d]", ErrProtocol, nurse, c.doctors-1)
		}
		c.assignedNurse[patient] = nurse
		c.queues[nurse].push(patient)

		if _, err := c.registeredCount.Increment(); err != nil {
			return err
		}
		c.emit(Registered, patient, nurse, -1)
		if err := c.regDone.Post(); err != nil {
			return err
		}
	}
	return nil
}
