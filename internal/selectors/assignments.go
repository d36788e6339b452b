// Package selectors projects cached collections into the views the client
// renders. Every function is pure: the same inputs and clock give the same
// output, and nothing is retained between calls.
package selectors

import (
	"sort"

	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// Uncategorized labels assignments and notes whose course is not cached.
const Uncategorized = "Uncategorized"

// Classified pairs an assignment with its deadline classification at the
// moment it was selected.
type Classified struct {
	Assignment entities.Assignment
	Class      deadline.Classification
}

// Classify classifies every assignment, ordered by deadline then id.
func Classify(classifier *deadline.Classifier, assignments []entities.Assignment) []Classified {
	out := make([]Classified, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, Classified{Assignment: assignment, Class: classifier.ClassifyAssignment(assignment)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Class.Deadline.Equal(out[j].Class.Deadline) {
			return out[i].Class.Deadline.Before(out[j].Class.Deadline)
		}
		return out[i].Assignment.ID < out[j].Assignment.ID
	})
	return out
}

func filter(items []Classified, keep func(Classified) bool) []Classified {
	out := make([]Classified, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// TodayAssignments lists assignments due on the current calendar day.
func TodayAssignments(classifier *deadline.Classifier, assignments []entities.Assignment) []Classified {
	return filter(Classify(classifier, assignments), func(item Classified) bool { return item.Class.Today })
}

// WeekAssignments lists assignments due inside the current week window.
func WeekAssignments(classifier *deadline.Classifier, assignments []entities.Assignment) []Classified {
	return filter(Classify(classifier, assignments), func(item Classified) bool { return item.Class.ThisWeek })
}

// OverdueAssignments lists unfinished assignments past their due day.
func OverdueAssignments(classifier *deadline.Classifier, assignments []entities.Assignment) []Classified {
	return filter(Classify(classifier, assignments), func(item Classified) bool { return item.Class.Overdue })
}

// ExamAssignments lists assignments typed as exams.
func ExamAssignments(classifier *deadline.Classifier, assignments []entities.Assignment) []Classified {
	return filter(Classify(classifier, assignments), func(item Classified) bool { return item.Class.Exam })
}

// CompletedAssignments lists finished assignments.
func CompletedAssignments(classifier *deadline.Classifier, assignments []entities.Assignment) []Classified {
	return filter(Classify(classifier, assignments), func(item Classified) bool { return item.Assignment.Done() })
}

// UpcomingDeadlines returns at most n unfinished assignments that are not
// overdue, nearest first. A non-positive n returns all of them.
func UpcomingDeadlines(classifier *deadline.Classifier, assignments []entities.Assignment, n int) []Classified {
	upcoming := filter(Classify(classifier, assignments), func(item Classified) bool {
		return !item.Assignment.Done() && item.Class.DaysUntil > 0
	})
	if n > 0 && len(upcoming) > n {
		upcoming = upcoming[:n]
	}
	return upcoming
}

// StatusBreakdown counts assignments per status. Statuses outside the known
// set are counted under entities.StatusUnknown.
func StatusBreakdown(assignments []entities.Assignment) map[entities.Status]int {
	counts := make(map[entities.Status]int, len(entities.Statuses())+1)
	for _, status := range entities.Statuses() {
		counts[status] = 0
	}
	for _, assignment := range assignments {
		counts[assignment.StatusName.Bucket()]++
	}
	return counts
}

// PriorityBreakdown counts assignments per priority with the same Unknown
// bucket rule as StatusBreakdown.
func PriorityBreakdown(assignments []entities.Assignment) map[entities.Priority]int {
	counts := make(map[entities.Priority]int, len(entities.Priorities())+1)
	for _, priority := range entities.Priorities() {
		counts[priority] = 0
	}
	for _, assignment := range assignments {
		counts[assignment.Priority.Bucket()]++
	}
	return counts
}
