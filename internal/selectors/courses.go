package selectors

import (
	"sort"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// CourseGroup is one course and the assignments that reference it. The
// Uncategorized group has a nil Course.
type CourseGroup struct {
	Label       string
	Course      *entities.Course
	Assignments []entities.Assignment
}

// Progress summarizes completion of a course's assignments.
type Progress struct {
	Total   int
	Done    int
	Percent int
}

func courseByID(courses []entities.Course, courseID int64) (entities.Course, bool) {
	for _, course := range courses {
		if course.ID == courseID {
			return course, true
		}
	}
	return entities.Course{}, false
}

// CourseLabel resolves a course code to a display name. Unresolvable codes
// yield Uncategorized.
func CourseLabel(courses []entities.Course, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return Uncategorized
	}
	for _, course := range courses {
		if course.Code == code {
			return course.Name
		}
	}
	return Uncategorized
}

// AssignmentsByCourse lists the assignments of one course. An unknown course
// has no assignments.
func AssignmentsByCourse(courses []entities.Course, assignments []entities.Assignment, courseID int64) []entities.Assignment {
	course, ok := courseByID(courses, courseID)
	if !ok {
		return nil
	}
	out := make([]entities.Assignment, 0)
	for _, assignment := range assignments {
		if assignment.CourseCode == course.Code {
			out = append(out, assignment)
		}
	}
	return out
}

// CourseProgress reports how many of a course's assignments are done.
func CourseProgress(courses []entities.Course, assignments []entities.Assignment, courseID int64) Progress {
	return progressOf(AssignmentsByCourse(courses, assignments, courseID))
}

func progressOf(assignments []entities.Assignment) Progress {
	progress := Progress{Total: len(assignments)}
	for _, assignment := range assignments {
		if assignment.Done() {
			progress.Done++
		}
	}
	if progress.Total > 0 {
		progress.Percent = progress.Done * 100 / progress.Total
	}
	return progress
}

// GroupByCourse buckets assignments under their course in course order. An
// Uncategorized group comes last when any assignment has no cached course.
func GroupByCourse(courses []entities.Course, assignments []entities.Assignment) []CourseGroup {
	groups := make([]CourseGroup, 0, len(courses)+1)
	index := make(map[string]int, len(courses))
	for i := range courses {
		if _, seen := index[courses[i].Code]; seen {
			continue
		}
		course := courses[i]
		index[course.Code] = len(groups)
		groups = append(groups, CourseGroup{Label: course.Name, Course: &course})
	}
	var orphans []entities.Assignment
	for _, assignment := range assignments {
		position, ok := index[assignment.CourseCode]
		if !ok {
			orphans = append(orphans, assignment)
			continue
		}
		groups[position].Assignments = append(groups[position].Assignments, assignment)
	}
	if len(orphans) > 0 {
		groups = append(groups, CourseGroup{Label: Uncategorized, Assignments: orphans})
	}
	return groups
}

// ActiveCourses lists courses running at now.
func ActiveCourses(courses []entities.Course, now time.Time) []entities.Course {
	out := make([]entities.Course, 0)
	for _, course := range courses {
		if course.ActiveAt(now) {
			out = append(out, course)
		}
	}
	return out
}

// UpcomingCourses lists courses that have not started yet, soonest first.
func UpcomingCourses(courses []entities.Course, now time.Time) []entities.Course {
	out := make([]entities.Course, 0)
	for _, course := range courses {
		if course.StartDate.After(now) {
			out = append(out, course)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

// SemesterGroup is the courses of one semester.
type SemesterGroup struct {
	Semester string
	Courses  []entities.Course
}

// CoursesBySemester groups courses by semester in first-seen order. Courses
// without a semester fall under Uncategorized.
func CoursesBySemester(courses []entities.Course) []SemesterGroup {
	var groups []SemesterGroup
	index := make(map[string]int)
	for _, course := range courses {
		semester := strings.TrimSpace(course.Semester)
		if semester == "" {
			semester = Uncategorized
		}
		position, ok := index[semester]
		if !ok {
			position = len(groups)
			index[semester] = position
			groups = append(groups, SemesterGroup{Semester: semester})
		}
		groups[position].Courses = append(groups[position].Courses, course)
	}
	return groups
}

// NotesByCourse lists the notes of one course code.
func NotesByCourse(notes []entities.Note, code string) []entities.Note {
	out := make([]entities.Note, 0)
	for _, note := range notes {
		if note.CourseCode == code {
			out = append(out, note)
		}
	}
	return out
}
