// File: clinic/consultation.go
package clinic

import "fmt"

// seeDoctor is the patient side of the symptom → advice → leave rendezvous.
func (c *Clinic) seeDoctor(patient, doctor int) error {
	office := c.offices[doctor]

	c.emit(SymptomsReported, patient, doctor, doctor)
	if err := office.symptom.Post(); err != nil {
		return err
	}
	if err := office.advice.Wait(c.runCtx); err != nil {
		return err
	}
	c.emit(Departed, patient, doctor, doctor)
	return office.left.Post()
}

// consult is the loop of one doctor: Free → Occupied on a symptom, back to
// Free once the patient left.
func (c *Clinic) consult(doctor int) error {
	office := c.offices[doctor]
	consulted := c.consultedCount

	for !consulted.Done() {
		if err := office.symptom.Wait(consulted.Context()); err != nil {
			_, err = consulted.finished(err)
			return err
		}
		patient, occupied := office.slot.Peek()
		if !occupied {
			return fmt.Errorf("%w: doctor %d got symptoms with an empty office", ErrProtocol, doctor)
		}
		c.emit(Advised, patient, doctor, doctor)
		if err := office.advice.Post(); err != nil {
			return err
		}
		if err := office.left.Wait(c.runCtx); err != nil {
			return err
		}

		if _, err := office.slot.Take(); err != nil {
			return err
		}
		if _, err := consulted.Increment(); err != nil {
			return err
		}
		c.emit(DoctorFreed, patient, doctor, doctor)
		if err := office.ready.Post(); err != nil {
			return err
		}
	}
	return nil
}
