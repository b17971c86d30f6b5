package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusPacked    Status = "packed"
	StatusCollected Status = "collected"
)

// validNext allows exactly one forward step from each state.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true},
	StatusPaid:      {StatusPacked: true},
	StatusPacked:    {StatusCollected: true},
	StatusCollected: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
