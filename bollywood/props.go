package bollywood

// Producer is a function that creates a new instance of an Actor.
type Producer func() Actor

// Props is a configuration object used to create actors.
type Props struct {
	producer    Producer
	name        string
	supervisor  *PID
	mailboxSize int
}

// NewProps creates a new Props object with the given actor producer.
func NewProps(producer Producer) *Props {
	if producer == nil {
		panic("bollywood: producer cannot be nil")
	}
	return &Props{
		producer:    producer,
		mailboxSize: defaultMailboxSize,
	}
}

// WithName gives the spawned actor a fixed PID instead of a generated one.
// Spawn refuses a name that is already in use.
func (p *Props) WithName(name string) *Props {
	p.name = name
	return p
}

// WithSupervisor sets the actor notified with a Failure message when this actor panics.
func (p *Props) WithSupervisor(supervisor *PID) *Props {
	p.supervisor = supervisor
	return p
}

// WithMailboxSize overrides the mailbox capacity. Messages beyond it are dropped.
func (p *Props) WithMailboxSize(size int) *Props {
	if size > 0 {
		p.mailboxSize = size
	}
	return p
}

// Produce creates a new actor instance using the configured producer.
func (p *Props) Produce() Actor {
	return p.producer()
}
