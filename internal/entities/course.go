package entities

import (
	"strconv"
	"time"
)

// Course models a school course. Assignments and notes reference it by Code.
type Course struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code            string    `gorm:"column:code;size:64;not null;uniqueIndex:idx_courses_code" json:"code"`
	Name            string    `gorm:"column:name;size:190;not null" json:"name"`
	Color           string    `gorm:"column:color;size:64;not null;default:bg-blue-500" json:"color"`
	Schedule        string    `gorm:"column:schedule;size:190;not null;default:''" json:"schedule"`
	Semester        string    `gorm:"column:semester;size:64;not null;default:'';index" json:"semester"`
	StartDate       time.Time `gorm:"column:start_date" json:"start_date"`
	EndDate         time.Time `gorm:"column:end_date" json:"end_date"`
	Instructor      string    `gorm:"column:instructor;size:190;not null;default:''" json:"instructor"`
	InstructorEmail string    `gorm:"column:instructor_email;size:190;not null;default:''" json:"instructor_email"`
	RoomNumber      string    `gorm:"column:room_number;size:64;not null;default:''" json:"room_number"`
	Credits         int       `gorm:"column:credits;not null;default:0" json:"credits"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Course) TableName() string {
	return "courses"
}

// EntityID returns the course identifier.
func (c Course) EntityID() int64 {
	return c.ID
}

// ActiveAt reports whether the course runs on the given instant.
func (c Course) ActiveAt(now time.Time) bool {
	return !c.StartDate.After(now) && !c.EndDate.Before(now)
}

// CoursePatch is a single-column change to a Course.
type CoursePatch interface {
	Patch[Course]
	coursePatch()
}

type SetCourseName struct{ Name string }

func (SetCourseName) Column() string { return "name" }
func (p SetCourseName) Value() string { return p.Name }
func (p SetCourseName) Apply(course Course) Course {
	course.Name = p.Name
	return course
}
func (SetCourseName) coursePatch() {}

type SetCourseColor struct{ Color string }

func (SetCourseColor) Column() string { return "color" }
func (p SetCourseColor) Value() string { return p.Color }
func (p SetCourseColor) Apply(course Course) Course {
	course.Color = p.Color
	return course
}
func (SetCourseColor) coursePatch() {}

type SetCourseSchedule struct{ Schedule string }

func (SetCourseSchedule) Column() string { return "schedule" }
func (p SetCourseSchedule) Value() string { return p.Schedule }
func (p SetCourseSchedule) Apply(course Course) Course {
	course.Schedule = p.Schedule
	return course
}
func (SetCourseSchedule) coursePatch() {}

type SetCourseSemester struct{ Semester string }

func (SetCourseSemester) Column() string { return "semester" }
func (p SetCourseSemester) Value() string { return p.Semester }
func (p SetCourseSemester) Apply(course Course) Course {
	course.Semester = p.Semester
	return course
}
func (SetCourseSemester) coursePatch() {}

type SetCourseInstructor struct{ Instructor string }

func (SetCourseInstructor) Column() string { return "instructor" }
func (p SetCourseInstructor) Value() string { return p.Instructor }
func (p SetCourseInstructor) Apply(course Course) Course {
	course.Instructor = p.Instructor
	return course
}
func (SetCourseInstructor) coursePatch() {}

type SetCourseInstructorEmail struct{ Email string }

func (SetCourseInstructorEmail) Column() string { return "instructor_email" }
func (p SetCourseInstructorEmail) Value() string { return p.Email }
func (p SetCourseInstructorEmail) Apply(course Course) Course {
	course.InstructorEmail = p.Email
	return course
}
func (SetCourseInstructorEmail) coursePatch() {}

type SetCourseRoom struct{ Room string }

func (SetCourseRoom) Column() string { return "room_number" }
func (p SetCourseRoom) Value() string { return p.Room }
func (p SetCourseRoom) Apply(course Course) Course {
	course.RoomNumber = p.Room
	return course
}
func (SetCourseRoom) coursePatch() {}

type SetCourseCredits struct{ Credits int }

func (SetCourseCredits) Column() string { return "credits" }
func (p SetCourseCredits) Value() string { return strconv.Itoa(p.Credits) }
func (p SetCourseCredits) Apply(course Course) Course {
	course.Credits = p.Credits
	return course
}
func (SetCourseCredits) coursePatch() {}

type SetCourseStartDate struct{ At time.Time }

func (SetCourseStartDate) Column() string { return "start_date" }
func (p SetCourseStartDate) Value() string { return p.At.Format(time.RFC3339) }
func (p SetCourseStartDate) Apply(course Course) Course {
	course.StartDate = p.At
	return course
}
func (SetCourseStartDate) coursePatch() {}

type SetCourseEndDate struct{ At time.Time }

func (SetCourseEndDate) Column() string { return "end_date" }
func (p SetCourseEndDate) Value() string { return p.At.Format(time.RFC3339) }
func (p SetCourseEndDate) Apply(course Course) Course {
	course.EndDate = p.At
	return course
}
func (SetCourseEndDate) coursePatch() {}
