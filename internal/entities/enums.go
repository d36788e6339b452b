package entities

import "strings"

// Status is the closed set of assignment progress states.
type Status string

const (
	StatusNotStarted Status = "Not started"
	StatusInProgress Status = "In progress"
	StatusDone       Status = "Done"
	// StatusUnknown is the display bucket for values outside the known set.
	StatusUnknown Status = "Unknown"
)

var statusColors = map[Status]string{
	StatusNotStarted: "bg-gray-500/20 text-gray-400",
	StatusInProgress: "bg-blue-500/20 text-blue-400",
	StatusDone:       "bg-green-500/20 text-green-400",
}

// Statuses lists the known statuses in workflow order.
func Statuses() []Status {
	return []Status{StatusNotStarted, StatusInProgress, StatusDone}
}

// Known reports whether the status belongs to the closed set.
func (s Status) Known() bool {
	_, ok := statusColors[s]
	return ok
}

// Bucket returns the status itself when known and StatusUnknown otherwise.
func (s Status) Bucket() Status {
	if s.Known() {
		return s
	}
	return StatusUnknown
}

// Terminal reports whether the status ends the assignment workflow.
func (s Status) Terminal() bool {
	return s == StatusDone
}

// Color returns the palette class for the status.
func (s Status) Color() string {
	if color, ok := statusColors[s]; ok {
		return color
	}
	return "bg-zinc-500/20 text-zinc-400"
}

// Priority is the closed set of assignment priorities.
type Priority string

const (
	PriorityLow     Priority = "low"
	PriorityMedium  Priority = "medium"
	PriorityHigh    Priority = "high"
	PriorityUnknown Priority = "unknown"
)

// Priorities lists the known priorities, lowest first.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// Known reports whether the priority belongs to the closed set.
func (p Priority) Known() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Bucket returns the priority itself when known and PriorityUnknown otherwise.
func (p Priority) Bucket() Priority {
	if p.Known() {
		return p
	}
	return PriorityUnknown
}

// Rank orders priorities for sorting; unknown values sort below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// TypeExam is the assignment type that marks an exam.
const TypeExam = "Exam"

var typeColors = map[string]string{
	"HW":            "text-blue-400 border-blue-400",
	TypeExam:        "text-red-400 border-red-400",
	"Lab":           "text-green-400 border-green-400",
	"Group Project": "text-yellow-400 border-yellow-400",
	"Quiz":          "text-orange-400 border-orange-400",
}

// AssignmentTypes lists the assignment types that have a palette entry.
func AssignmentTypes() []string {
	return []string{"HW", TypeExam, "Lab", "Group Project", "Quiz"}
}

// TypeColor returns the palette class for a free-form assignment type.
func TypeColor(typeName string) string {
	if color, ok := typeColors[strings.TrimSpace(typeName)]; ok {
		return color
	}
	return "text-gray-400 border-gray-400"
}
