package selectors

import (
	"time"

	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// upcomingLimit bounds the upcoming section of the agenda.
const upcomingLimit = 5

// AgendaRow is one assignment line of the agenda.
type AgendaRow struct {
	ID          int64
	Title       string
	Course      string
	Type        string
	Status      entities.Status
	Priority    entities.Priority
	Due         time.Time
	Description string
}

// CourseRow is one course line with its completion.
type CourseRow struct {
	Code     string
	Name     string
	Progress Progress
}

// Agenda is the dashboard summary of the cached workspace.
type Agenda struct {
	GeneratedAt time.Time
	Today       []AgendaRow
	Week        []AgendaRow
	Overdue     []AgendaRow
	Exams       []AgendaRow
	Upcoming    []AgendaRow
	Courses     []CourseRow
	Statuses    map[entities.Status]int
	Storage     Usage
}

// BuildAgenda classifies every assignment once and slices the result into
// the agenda sections.
func BuildAgenda(classifier *deadline.Classifier, courses []entities.Course, assignments []entities.Assignment, storage entities.StorageInfo) Agenda {
	classified := Classify(classifier, assignments)
	row := func(item Classified) AgendaRow {
		return AgendaRow{
			ID:          item.Assignment.ID,
			Title:       item.Assignment.Title,
			Course:      CourseLabel(courses, item.Assignment.CourseCode),
			Type:        item.Assignment.TypeName,
			Status:      item.Assignment.StatusName.Bucket(),
			Priority:    item.Assignment.Priority.Bucket(),
			Due:         item.Class.Deadline,
			Description: item.Class.Description,
		}
	}
	rows := func(keep func(Classified) bool) []AgendaRow {
		out := make([]AgendaRow, 0)
		for _, item := range classified {
			if keep(item) {
				out = append(out, row(item))
			}
		}
		return out
	}

	agenda := Agenda{
		GeneratedAt: classifier.Now(),
		Today:       rows(func(item Classified) bool { return item.Class.Today }),
		Week:        rows(func(item Classified) bool { return item.Class.ThisWeek }),
		Overdue:     rows(func(item Classified) bool { return item.Class.Overdue }),
		Exams:       rows(func(item Classified) bool { return item.Class.Exam && !item.Assignment.Done() }),
		Statuses:    StatusBreakdown(assignments),
		Storage:     StorageUsage(storage),
	}
	upcoming := rows(func(item Classified) bool { return !item.Assignment.Done() && item.Class.DaysUntil > 0 })
	if len(upcoming) > upcomingLimit {
		upcoming = upcoming[:upcomingLimit]
	}
	agenda.Upcoming = upcoming

	for _, group := range GroupByCourse(courses, assignments) {
		if group.Course == nil {
			continue
		}
		agenda.Courses = append(agenda.Courses, CourseRow{
			Code:     group.Course.Code,
			Name:     group.Course.Name,
			Progress: progressOf(group.Assignments),
		})
	}
	return agenda
}
