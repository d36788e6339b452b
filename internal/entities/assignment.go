package entities

import (
	"time"
)

// Assignment is a dated unit of coursework.
//
// Deadline is kept as the value received from storage. Readers resolve it to
// an instant through the deadline classifier on every read.
type Assignment struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title      string    `gorm:"column:title;size:190;not null" json:"title"`
	Todo       string    `gorm:"column:todo;type:text;not null;default:''" json:"todo"`
	Deadline   string    `gorm:"column:deadline;size:64;not null;default:'';index:idx_assignments_deadline" json:"deadline"`
	StatusName Status    `gorm:"column:status_name;size:32;not null;default:'Not started'" json:"status_name"`
	Priority   Priority  `gorm:"column:priority;size:16;not null;default:medium" json:"priority"`
	TypeName   string    `gorm:"column:type_name;size:64;not null;default:''" json:"type_name"`
	CourseCode string    `gorm:"column:course_code;size:64;not null;default:'';index:idx_assignments_course" json:"course_code"`
	Link       string    `gorm:"column:link;size:512;not null;default:''" json:"link"`
	Completed  bool      `gorm:"column:completed;not null;default:false" json:"completed"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Assignment) TableName() string {
	return "assignments"
}

// EntityID returns the assignment identifier.
func (a Assignment) EntityID() int64 {
	return a.ID
}

// Done reports whether the assignment is finished either by status or by flag.
func (a Assignment) Done() bool {
	return a.StatusName == StatusDone || a.Completed
}

// AssignmentPatch is a single-column change to an Assignment.
type AssignmentPatch interface {
	Patch[Assignment]
	assignmentPatch()
}

type SetAssignmentTitle struct{ Title string }

func (SetAssignmentTitle) Column() string { return "title" }
func (p SetAssignmentTitle) Value() string { return p.Title }
func (p SetAssignmentTitle) Apply(assignment Assignment) Assignment {
	assignment.Title = p.Title
	return assignment
}
func (SetAssignmentTitle) assignmentPatch() {}

type SetAssignmentTodo struct{ Todo string }

func (SetAssignmentTodo) Column() string { return "todo" }
func (p SetAssignmentTodo) Value() string { return p.Todo }
func (p SetAssignmentTodo) Apply(assignment Assignment) Assignment {
	assignment.Todo = p.Todo
	return assignment
}
func (SetAssignmentTodo) assignmentPatch() {}

// SetAssignmentDeadline moves the deadline. The instant travels as RFC3339.
type SetAssignmentDeadline struct{ At time.Time }

func (SetAssignmentDeadline) Column() string { return "deadline" }
func (p SetAssignmentDeadline) Value() string { return p.At.Format(time.RFC3339) }
func (p SetAssignmentDeadline) Apply(assignment Assignment) Assignment {
	assignment.Deadline = p.Value()
	return assignment
}
func (SetAssignmentDeadline) assignmentPatch() {}

// SetAssignmentStatus changes the status. Done also sets the completed flag so
// both completion signals stay in step.
type SetAssignmentStatus struct{ Status Status }

func (SetAssignmentStatus) Column() string { return "status_name" }
func (p SetAssignmentStatus) Value() string { return string(p.Status) }
func (p SetAssignmentStatus) Apply(assignment Assignment) Assignment {
	assignment.StatusName = p.Status
	assignment.Completed = p.Status == StatusDone
	return assignment
}
func (SetAssignmentStatus) assignmentPatch() {}

type SetAssignmentPriority struct{ Priority Priority }

func (SetAssignmentPriority) Column() string { return "priority" }
func (p SetAssignmentPriority) Value() string { return string(p.Priority) }
func (p SetAssignmentPriority) Apply(assignment Assignment) Assignment {
	assignment.Priority = p.Priority
	return assignment
}
func (SetAssignmentPriority) assignmentPatch() {}

type SetAssignmentType struct{ TypeName string }

func (SetAssignmentType) Column() string { return "type_name" }
func (p SetAssignmentType) Value() string { return p.TypeName }
func (p SetAssignmentType) Apply(assignment Assignment) Assignment {
	assignment.TypeName = p.TypeName
	return assignment
}
func (SetAssignmentType) assignmentPatch() {}

type SetAssignmentCourse struct{ CourseCode string }

func (SetAssignmentCourse) Column() string { return "course_code" }
func (p SetAssignmentCourse) Value() string { return p.CourseCode }
func (p SetAssignmentCourse) Apply(assignment Assignment) Assignment {
	assignment.CourseCode = p.CourseCode
	return assignment
}
func (SetAssignmentCourse) assignmentPatch() {}

type SetAssignmentLink struct{ Link string }

func (SetAssignmentLink) Column() string { return "link" }
func (p SetAssignmentLink) Value() string { return p.Link }
func (p SetAssignmentLink) Apply(assignment Assignment) Assignment {
	assignment.Link = p.Link
	return assignment
}
func (SetAssignmentLink) assignmentPatch() {}
