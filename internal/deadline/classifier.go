// Package deadline resolves stored assignment deadlines to instants and
// derives the temporal categories the dashboard views are built from.
package deadline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

var (
	// ErrUnparsable reports a deadline value that no supported shape matched.
	ErrUnparsable = errors.New("deadline: unparsable value")
	// ErrEmpty reports a blank or nil deadline value.
	ErrEmpty = errors.New("deadline: empty value")
)

// minUnixSeconds is the smallest numeric string read as unix seconds
// (2001-09-09). Shorter numbers are calendar fragments, not instants.
const minUnixSeconds = 1_000_000_000

// numericShape matches strings made only of digits and date punctuation. They
// must parse as a layout or as unix seconds; the phrase parser would read
// fragments of them as clock times.
var numericShape = regexp.MustCompile(`^[0-9][0-9:/.\-+TZ ]*$`)

var offsetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700 MST",
	time.RFC1123Z,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Config configures a Classifier. Zero values select the process clock, the
// process local zone, Sunday week starts, and a no-op logger.
type Config struct {
	Clock     func() time.Time
	Location  *time.Location
	WeekStart time.Weekday
	Logger    *zap.Logger
}

// Classifier turns deadline values into instants and categories. It holds no
// state besides its configuration and is safe for concurrent use.
type Classifier struct {
	clock     func() time.Time
	location  *time.Location
	weekStart time.Weekday
	logger    *zap.Logger
	phrases   *when.Parser
}

// Classification is the derived view of one deadline at one instant.
type Classification struct {
	Deadline  time.Time
	DaysUntil int
	Overdue   bool
	Today     bool
	ThisWeek  bool
	// Exam is set by ClassifyAssignment from the type tag. Classify has no
	// type tag and leaves it false.
	Exam        bool
	Description string
}

// New builds a Classifier from cfg.
func New(cfg Config) *Classifier {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	phrases := when.New(nil)
	phrases.Add(en.All...)
	phrases.Add(common.All...)

	return &Classifier{
		clock:     clock,
		location:  location,
		weekStart: cfg.WeekStart,
		logger:    logger,
		phrases:   phrases,
	}
}

// Location returns the zone used for offsetless values and calendar math.
func (c *Classifier) Location() *time.Location {
	return c.location
}

// Now returns the current instant in the classifier's zone.
func (c *Classifier) Now() time.Time {
	return c.clock().In(c.location)
}

// Parse resolves value to an instant. Values that cannot be resolved are
// logged and replaced by the current instant.
func (c *Classifier) Parse(value any) time.Time {
	parsed, err := c.ParseStrict(value)
	if err != nil {
		c.logger.Warn("deadline fallback to now",
			zap.String("operation", "deadline.parse"),
			zap.String("value", fmt.Sprint(value)),
			zap.Error(err))
		return c.Now()
	}
	return parsed
}

// ParseStrict resolves value to an instant or reports why it could not.
//
// Accepted shapes: time.Time, *time.Time, unix seconds as any integer type,
// strings with or without an offset (offsetless strings use the classifier's
// zone), natural-language phrases, and fmt.Stringer.
func (c *Classifier) ParseStrict(value any) (time.Time, error) {
	switch typed := value.(type) {
	case nil:
		return time.Time{}, ErrEmpty
	case time.Time:
		if typed.IsZero() {
			return time.Time{}, ErrEmpty
		}
		return typed, nil
	case *time.Time:
		if typed == nil || typed.IsZero() {
			return time.Time{}, ErrEmpty
		}
		return *typed, nil
	case int64:
		return time.Unix(typed, 0).In(c.location), nil
	case int:
		return time.Unix(int64(typed), 0).In(c.location), nil
	case int32:
		return time.Unix(int64(typed), 0).In(c.location), nil
	case float64:
		return time.Unix(int64(typed), 0).In(c.location), nil
	case string:
		return c.parseString(typed)
	case []byte:
		return c.parseString(string(typed))
	case fmt.Stringer:
		return c.parseString(typed.String())
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrUnparsable, value)
	}
}

func (c *Classifier) parseString(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, ErrEmpty
	}

	for _, layout := range offsetLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, c.location); err == nil {
			return parsed, nil
		}
	}
	if seconds, err := strconv.ParseInt(trimmed, 10, 64); err == nil && seconds >= minUnixSeconds {
		return time.Unix(seconds, 0).In(c.location), nil
	}
	if numericShape.MatchString(trimmed) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, trimmed)
	}

	result, err := c.phrases.Parse(trimmed, c.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, trimmed, err)
	}
	if result == nil || !coversAll(trimmed, result.Index, result.Text) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, trimmed)
	}
	return result.Time.In(c.location), nil
}

// coversAll reports whether the phrase match at index spans the whole input,
// apart from surrounding spaces and punctuation.
func coversAll(input string, index int, matched string) bool {
	end := index + len(matched)
	if index < 0 || end > len(input) {
		return false
	}
	filler := func(r rune) bool { return unicode.IsSpace(r) || unicode.IsPunct(r) }
	return strings.TrimFunc(input[:index], filler) == "" && strings.TrimFunc(input[end:], filler) == ""
}

// DaysUntil is the calendar-day distance from today to the deadline's day,
// counted in the classifier's zone. Today and later days count from 1, so a
// deadline later today reports 1 and tomorrow reports 2; past days report the
// negative distance.
func (c *Classifier) DaysUntil(deadline time.Time) int {
	diff := calendarDays(c.Now(), deadline.In(c.location))
	if diff < 0 {
		return diff
	}
	return diff + 1
}

// IsOverdue reports whether a deadline daysUntil away is missed for status.
func IsOverdue(daysUntil int, status entities.Status) bool {
	return daysUntil < 0 && !status.Terminal()
}

// Describe renders the due description for a deadline daysUntil away.
func Describe(daysUntil int, status entities.Status) string {
	if status.Terminal() {
		return "Completed"
	}
	switch {
	case daysUntil <= 0:
		return fmt.Sprintf("%d days overdue", -daysUntil)
	case daysUntil == 1:
		return "Due today"
	case daysUntil == 2:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("%d days left", daysUntil)
	}
}

// IsToday reports whether t falls on the current calendar day.
func (c *Classifier) IsToday(t time.Time) bool {
	return calendarDays(c.Now(), t.In(c.location)) == 0
}

// IsThisWeek reports whether t falls in the week containing now, with weeks
// starting on the configured weekday.
func (c *Classifier) IsThisWeek(t time.Time) bool {
	start, end := c.WeekBounds()
	local := t.In(c.location)
	return !local.Before(start) && local.Before(end)
}

// WeekBounds returns the half-open window [start, end) of the current week.
func (c *Classifier) WeekBounds() (time.Time, time.Time) {
	now := c.Now()
	offset := (int(now.Weekday()) - int(c.weekStart) + 7) % 7
	year, month, day := now.Date()
	start := time.Date(year, month, day-offset, 0, 0, 0, 0, c.location)
	return start, start.AddDate(0, 0, 7)
}

// IsExam reports whether the type tag marks an exam.
func IsExam(typeName string) bool {
	return strings.TrimSpace(typeName) == entities.TypeExam
}

// Classify derives every category for a deadline value and status.
func (c *Classifier) Classify(value any, status entities.Status) Classification {
	at := c.Parse(value)
	days := c.DaysUntil(at)
	return Classification{
		Deadline:    at,
		DaysUntil:   days,
		Overdue:     IsOverdue(days, status),
		Today:       c.IsToday(at),
		ThisWeek:    c.IsThisWeek(at),
		Description: Describe(days, status),
	}
}

// ClassifyAssignment classifies an assignment. The completed flag counts as
// the terminal status.
func (c *Classifier) ClassifyAssignment(assignment entities.Assignment) Classification {
	status := assignment.StatusName
	if assignment.Done() {
		status = entities.StatusDone
	}
	classification := c.Classify(assignment.Deadline, status)
	classification.Exam = IsExam(assignment.TypeName)
	return classification
}

func calendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
