package hotpath

// Status is a presence value sent to the session service.
type Status int

const (
	Online Status = iota
	Busy
	Away
)

var statusCycle = [...]Status{Online, Busy, Away}

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Busy:
		return "busy"
	case Away:
		return "away"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusFor picks the presence status for a VU's iteration. The same pair
// always yields the same status.
func StatusFor(vu, iter int) Status {
	n := (vu + iter) % len(statusCycle)
	if n < 0 {
		n += len(statusCycle)
	}
	return statusCycle[n]
}
