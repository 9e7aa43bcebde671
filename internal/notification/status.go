package notification

import "fmt"

// Status is the lifecycle state of a Notification. The integer values are
// part of the status wire format and must not be renumbered.
type Status int

const (
	StatusPending    Status = 0
	StatusProcessing Status = 1
	StatusSent       Status = 2
	StatusDelivered  Status = 3
	StatusFailed     Status = 4
)

var statusNames = map[Status]string{
	StatusPending:    "Pending",
	StatusProcessing: "Processing",
	StatusSent:       "Sent",
	StatusDelivered:  "Delivered",
	StatusFailed:     "Failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is one of the defined states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Priority orders outbound email. Values 0..3 are accepted on the wire.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Valid reports whether p lies within Low..Critical.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}
