// Package report renders the agenda for terminal output.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/selectors"
)

const (
	headerLayout = "Mon Jan 2 2006 15:04 MST"
	dueLayout    = "Mon Jan 2 15:04"
)

// Render writes agenda as plain text. Due times are shown in the zone the
// agenda was generated in.
func Render(w io.Writer, agenda selectors.Agenda) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Agenda for %s\n", agenda.GeneratedAt.Format(headerLayout))

	location := agenda.GeneratedAt.Location()
	sections := []struct {
		title string
		rows  []selectors.AgendaRow
	}{
		{"Overdue", agenda.Overdue},
		{"Today", agenda.Today},
		{"This week", agenda.Week},
		{"Exams", agenda.Exams},
		{"Upcoming", agenda.Upcoming},
	}
	for _, section := range sections {
		fmt.Fprintf(&b, "\n%s (%d)\n", section.title, len(section.rows))
		if len(section.rows) == 0 {
			b.WriteString("  (none)\n")
		}
		for _, row := range section.rows {
			fmt.Fprintf(&b, "  #%d %s | %s | %s | %s | %s\n",
				row.ID, row.Title, row.Course, row.Priority, row.Description,
				row.Due.In(location).Format(dueLayout))
		}
	}

	fmt.Fprintf(&b, "\nCourses (%d)\n", len(agenda.Courses))
	if len(agenda.Courses) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, course := range agenda.Courses {
		fmt.Fprintf(&b, "  %s %s: %d/%d done (%d%%)\n",
			course.Code, course.Name, course.Progress.Done, course.Progress.Total, course.Progress.Percent)
	}

	b.WriteString("\n")
	b.WriteString(statusLine(agenda.Statuses))
	fmt.Fprintf(&b, "Storage: %s of %s used (%.1f%%), %d documents\n",
		humanize.IBytes(uint64(agenda.Storage.Used)),
		humanize.IBytes(uint64(agenda.Storage.Limit)),
		agenda.Storage.Percent,
		agenda.Storage.DocumentCount)

	_, err := io.WriteString(w, b.String())
	return err
}

func statusLine(counts map[entities.Status]int) string {
	parts := make([]string, 0, len(entities.Statuses())+1)
	for _, status := range entities.Statuses() {
		parts = append(parts, fmt.Sprintf("%s %d", status, counts[status]))
	}
	if unknown := counts[entities.StatusUnknown]; unknown > 0 {
		parts = append(parts, fmt.Sprintf("%s %d", entities.StatusUnknown, unknown))
	}
	return "Statuses: " + strings.Join(parts, ", ") + "\n"
}
