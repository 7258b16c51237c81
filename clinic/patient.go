package clinic

// visit drives one patient through register → wait-for-nurse → wait-for-doctor → leave.
func (c *Clinic) visit(patient int) error {
	nurse, err := c.register(patient)
	if err != nil {
		return err
	}
	if err := c.joinQueue(patient, nurse); err != nil {
		return err
	}
	// Nurses and doctors are paired 1:1
	doctor := nurse
	return c.seeDoctor(patient, doctor)
}
