package selectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func testClassifier() *deadline.Classifier {
	return deadline.New(deadline.Config{
		Clock:    func() time.Time { return fixedNow },
		Location: time.UTC,
	})
}

func testCourses() []entities.Course {
	return []entities.Course{
		{
			ID: 1, Code: "CS101", Name: "Programming", Semester: "Fall 2024",
			StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 2, Code: "MATH200", Name: "Calculus", Semester: "Fall 2024",
			StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 3, Code: "ART300", Name: "Drawing",
			StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		},
	}
}

func testAssignments() []entities.Assignment {
	return []entities.Assignment{
		{ID: 1, Title: "Loops", Deadline: "2024-06-10T18:00:00", StatusName: entities.StatusNotStarted, Priority: entities.PriorityHigh, TypeName: "HW", CourseCode: "CS101"},
		{ID: 2, Title: "Sorting lab", Deadline: "2024-06-08T10:00:00", StatusName: entities.StatusInProgress, Priority: entities.PriorityMedium, TypeName: "Lab", CourseCode: "CS101"},
		{ID: 3, Title: "Midterm", Deadline: "2024-06-13T09:00:00", StatusName: entities.StatusNotStarted, Priority: entities.PriorityHigh, TypeName: "Exam", CourseCode: "MATH200"},
		{ID: 4, Title: "Intro", Deadline: "2024-06-05T09:00:00", StatusName: entities.StatusDone, Priority: entities.PriorityLow, TypeName: "HW", CourseCode: "CS101"},
		{ID: 5, Title: "Cells", Deadline: "2024-06-20T09:00:00", StatusName: "Blocked", Priority: "urgent", TypeName: "Quiz", CourseCode: "BIO999"},
	}
}

func ids(items []Classified) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.Assignment.ID)
	}
	return out
}

func TestTemporalSelectors(t *testing.T) {
	classifier := testClassifier()
	assignments := testAssignments()

	assert.Equal(t, []int64{1}, ids(TodayAssignments(classifier, assignments)))
	assert.Equal(t, []int64{1, 3}, ids(WeekAssignments(classifier, assignments)))
	assert.Equal(t, []int64{2}, ids(OverdueAssignments(classifier, assignments)))
	assert.Equal(t, []int64{3}, ids(ExamAssignments(classifier, assignments)))
	assert.Equal(t, []int64{4}, ids(CompletedAssignments(classifier, assignments)))
}

func TestUpcomingDeadlinesSkipsDoneAndOverdue(t *testing.T) {
	classifier := testClassifier()

	assert.Equal(t, []int64{1, 3, 5}, ids(UpcomingDeadlines(classifier, testAssignments(), 0)))
	assert.Equal(t, []int64{1, 3}, ids(UpcomingDeadlines(classifier, testAssignments(), 2)))
}

func TestClassifyOrdersByDeadline(t *testing.T) {
	items := Classify(testClassifier(), testAssignments())

	assert.Equal(t, []int64{4, 2, 1, 3, 5}, ids(items))
	assert.Equal(t, "4 days left", items[3].Class.Description)
}

func TestStatusBreakdownHasUnknownBucket(t *testing.T) {
	counts := StatusBreakdown(testAssignments())

	assert.Equal(t, map[entities.Status]int{
		entities.StatusNotStarted: 2,
		entities.StatusInProgress: 1,
		entities.StatusDone:       1,
		entities.StatusUnknown:    1,
	}, counts)
	assert.Equal(t, 1, PriorityBreakdown(testAssignments())[entities.PriorityUnknown])
}

func TestStatusBreakdownOfNothing(t *testing.T) {
	counts := StatusBreakdown(nil)

	assert.Len(t, counts, 3)
	assert.Zero(t, counts[entities.StatusUnknown])
}

func TestCourseSelectors(t *testing.T) {
	courses := testCourses()
	assignments := testAssignments()

	byCourse := AssignmentsByCourse(courses, assignments, 1)
	require.Len(t, byCourse, 3)
	assert.Nil(t, AssignmentsByCourse(courses, assignments, 99))

	assert.Equal(t, Progress{Total: 3, Done: 1, Percent: 33}, CourseProgress(courses, assignments, 1))
	assert.Equal(t, Progress{}, CourseProgress(courses, assignments, 3))
}

func TestGroupByCourseUncategorizedLast(t *testing.T) {
	groups := GroupByCourse(testCourses(), testAssignments())

	require.Len(t, groups, 4)
	assert.Equal(t, "Programming", groups[0].Label)
	assert.Len(t, groups[0].Assignments, 3)
	assert.Equal(t, "Drawing", groups[2].Label)
	assert.Empty(t, groups[2].Assignments)
	assert.Equal(t, Uncategorized, groups[3].Label)
	assert.Nil(t, groups[3].Course)
	require.Len(t, groups[3].Assignments, 1)
	assert.Equal(t, int64(5), groups[3].Assignments[0].ID)
}

func TestCourseLabelDegrades(t *testing.T) {
	courses := testCourses()

	assert.Equal(t, "Calculus", CourseLabel(courses, "MATH200"))
	assert.Equal(t, Uncategorized, CourseLabel(courses, "BIO999"))
	assert.Equal(t, Uncategorized, CourseLabel(courses, ""))
	assert.Equal(t, Uncategorized, CourseLabel(nil, "CS101"))
}

func TestCourseCalendarSelectors(t *testing.T) {
	courses := testCourses()

	active := ActiveCourses(courses, fixedNow)
	require.Len(t, active, 2)
	upcoming := UpcomingCourses(courses, fixedNow)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "ART300", upcoming[0].Code)

	semesters := CoursesBySemester(courses)
	require.Len(t, semesters, 2)
	assert.Equal(t, "Fall 2024", semesters[0].Semester)
	assert.Len(t, semesters[0].Courses, 2)
	assert.Equal(t, Uncategorized, semesters[1].Semester)
}

func TestDocumentSelectors(t *testing.T) {
	parent := int64(1)
	documents := []entities.Document{
		{ID: 2, AssignmentID: 10, Type: entities.DocumentTypeSupport, Version: 2, ParentDocID: &parent},
		{ID: 1, AssignmentID: 10, Type: entities.DocumentTypeSupport, Version: 1},
		{ID: 3, AssignmentID: 10, Type: entities.DocumentTypeSubmission, Version: 1},
		{ID: 4, AssignmentID: 11, Type: entities.DocumentTypeSupport, Version: 1},
	}

	assert.Len(t, DocumentsOfType(documents, 10, entities.DocumentTypeSupport), 2)
	assert.Len(t, DocumentsOfType(documents, 0, entities.DocumentTypeSupport), 3)
	assert.Len(t, DocumentsOfType(documents, 10, ""), 3)

	current := CurrentDocuments(documents)
	require.Len(t, current, 3)
	assert.Equal(t, int64(2), current[0].ID)

	history := VersionHistory(documents, 1)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[0].ID)
	assert.Empty(t, VersionHistory(documents, 99))
}

func TestStorageUsage(t *testing.T) {
	usage := StorageUsage(entities.StorageInfo{TotalSize: entities.MaxUserQuota / 4, DocumentCount: 7})

	assert.Equal(t, entities.MaxUserQuota, usage.Limit)
	assert.Equal(t, entities.MaxUserQuota*3/4, usage.Remaining)
	assert.InDelta(t, 25.0, usage.Percent, 0.001)
	assert.Equal(t, 7, usage.DocumentCount)
}

func TestBuildAgenda(t *testing.T) {
	agenda := BuildAgenda(testClassifier(), testCourses(), testAssignments(), entities.StorageInfo{TotalSize: 1024, DocumentCount: 2})

	assert.Equal(t, fixedNow, agenda.GeneratedAt)
	require.Len(t, agenda.Today, 1)
	assert.Equal(t, "Due today", agenda.Today[0].Description)
	assert.Equal(t, "Programming", agenda.Today[0].Course)
	require.Len(t, agenda.Overdue, 1)
	assert.Equal(t, "2 days overdue", agenda.Overdue[0].Description)
	require.Len(t, agenda.Exams, 1)
	assert.Equal(t, "Calculus", agenda.Exams[0].Course)
	require.Len(t, agenda.Upcoming, 3)
	assert.Equal(t, Uncategorized, agenda.Upcoming[2].Course)
	assert.Equal(t, entities.StatusUnknown, agenda.Upcoming[2].Status)
	require.Len(t, agenda.Courses, 3)
	assert.Equal(t, Progress{Total: 3, Done: 1, Percent: 33}, agenda.Courses[0].Progress)
	assert.Equal(t, int64(1024), agenda.Storage.Used)
}
