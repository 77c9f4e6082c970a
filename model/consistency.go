package model

// Consistency selects how many replica acknowledgements a read or write
// waits for. Default defers to the session's configured level.
type Consistency int

const (
	Default Consistency = iota
	One
	LocalQuorum
	Quorum
	All
)

func (c Consistency) String() string {
	switch c {
	case Default:
		return "DEFAULT"
	case One:
		return "ONE"
	case LocalQuorum:
		return "LOCAL_QUORUM"
	case Quorum:
		return "QUORUM"
	case All:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// rank orders levels by strength. Default ranks with LocalQuorum, which is
// the session default in every backend.
func (c Consistency) rank() int {
	switch c {
	case One:
		return 1
	case Default, LocalQuorum:
		return 2
	case Quorum:
		return 3
	case All:
		return 4
	default:
		return 0
	}
}

// Stronger returns whichever of c and o requires more acknowledgements.
// Ties keep c.
func (c Consistency) Stronger(o Consistency) Consistency {
	if o.rank() > c.rank() {
		return o
	}
	return c
}
