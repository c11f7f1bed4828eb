// Package schedule defines the course timetable domain model shared by
// the local store, the sync engine, and the wire layer.
package schedule

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultCourseColor is assigned when a course is created without an
// explicit color.
const DefaultCourseColor = "#6750A4"

// Course is a taught course. ID is assigned by the local store and is
// the join key between the local and remote datasets.
type Course struct {
	ID       int64  `json:"id"`
	Name     string `json:"name" validate:"required"`
	Teacher  string `json:"teacher,omitempty"`
	Location string `json:"location,omitempty"`
	Color    string `json:"color,omitempty"`
	Note     string `json:"note,omitempty"`
}

// ScheduleEntry is one recurring timetable slot belonging to a course.
// Times are wall-clock "HH:MM" strings; the fixed-width zero-padded
// format makes lexicographic comparison equivalent to chronological
// comparison. An empty week set means the entry is active every week.
type ScheduleEntry struct {
	ID        int64   `json:"id"`
	CourseID  int64   `json:"course_id" validate:"required,gt=0"`
	DayOfWeek int     `json:"day_of_week" validate:"gte=1,lte=7"`
	StartTime string  `json:"start_time" validate:"required,hhmm"`
	EndTime   string  `json:"end_time" validate:"required,hhmm"`
	Weeks     WeekSet `json:"weeks"`
	Note      string  `json:"note,omitempty"`
}

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})

	return v
}

// Validate checks required fields on a course.
func (c *Course) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid course: %w", err)
	}

	return nil
}

// Validate checks field constraints on a schedule entry, including that
// the start time sorts before the end time.
func (e *ScheduleEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid schedule entry: %w", err)
	}

	if e.StartTime >= e.EndTime {
		return fmt.Errorf("invalid schedule entry: start time %s must be before end time %s", e.StartTime, e.EndTime)
	}

	return nil
}

// Direction identifies which way a sync attempt moved data.
type Direction string

// Sync directions.
const (
	DirectionUpload        Direction = "upload"
	DirectionDownload      Direction = "download"
	DirectionBidirectional Direction = "bidirectional"
)

// Status is the recorded outcome of a sync attempt.
type Status string

// Sync statuses. StatusConflict marks a completed bidirectional sync
// during which conflicts were detected and resolved.
const (
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusConflict Status = "conflict"
)

// SyncHistoryRecord is one append-only audit row for a sync attempt.
// Records are never mutated or deleted by the engine; retention is an
// external concern.
type SyncHistoryRecord struct {
	ID             uint64    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Direction      Direction `json:"direction"`
	Status         Status    `json:"status"`
	Message        string    `json:"message"`
	CoursesSynced  int       `json:"courses_synced"`
	EntriesSynced  int       `json:"entries_synced"`
	ConflictsFound int       `json:"conflicts_found"`
}

// Dataset is a full snapshot of one side's courses and entries, the
// unit the engine detects, merges, and applies over.
type Dataset struct {
	Courses []Course
	Entries []ScheduleEntry
}

// CourseByID indexes the dataset's courses by identifier.
func (d Dataset) CourseByID() map[int64]Course {
	m := make(map[int64]Course, len(d.Courses))
	for _, c := range d.Courses {
		m[c.ID] = c
	}

	return m
}

// EntryByID indexes the dataset's schedule entries by identifier.
func (d Dataset) EntryByID() map[int64]ScheduleEntry {
	m := make(map[int64]ScheduleEntry, len(d.Entries))
	for _, e := range d.Entries {
		m[e.ID] = e
	}

	return m
}
