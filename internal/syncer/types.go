package syncer

import "github.com/classtop/classtop-sync/internal/schedule"

// Envelope is the JSON wrapper every server response uses.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RegisterRequest is the payload for POST /api/clients/register.
type RegisterRequest struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	APIURL string `json:"api_url"`
}

// WireCourse is a course as it crosses the wire. Identifiers are the
// client's own; the server stores them verbatim and scopes them by
// client UUID.
type WireCourse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Teacher  string `json:"teacher,omitempty"`
	Location string `json:"location,omitempty"`
	Color    string `json:"color,omitempty"`
	Note     string `json:"note,omitempty"`
}

// WireEntry is a schedule entry as it crosses the wire. Weeks are a
// native JSON array outbound; inbound decoding also tolerates the
// string-serialized form via WeekSet.
type WireEntry struct {
	ID        int64            `json:"id"`
	CourseID  int64            `json:"course_id"`
	DayOfWeek int              `json:"day_of_week"`
	StartTime string           `json:"start_time"`
	EndTime   string           `json:"end_time"`
	Weeks     schedule.WeekSet `json:"weeks"`
	Note      string           `json:"note,omitempty"`
}

// SyncRequest is the payload for POST /api/sync: one full snapshot of
// the client's dataset.
type SyncRequest struct {
	ClientUUID string       `json:"client_uuid"`
	Courses    []WireCourse `json:"courses"`
	Entries    []WireEntry  `json:"schedule_entries"`
}

// SyncCounts is the server's report of what it stored.
type SyncCounts struct {
	SyncedCourses int `json:"synced_courses"`
	SyncedEntries int `json:"synced_entries"`
}

// courseToWire converts a domain course for upload.
func courseToWire(c schedule.Course) WireCourse {
	return WireCourse{
		ID:       c.ID,
		Name:     c.Name,
		Teacher:  c.Teacher,
		Location: c.Location,
		Color:    c.Color,
		Note:     c.Note,
	}
}

// courseFromWire converts a downloaded course to the domain type.
func courseFromWire(w WireCourse) schedule.Course {
	return schedule.Course{
		ID:       w.ID,
		Name:     w.Name,
		Teacher:  w.Teacher,
		Location: w.Location,
		Color:    w.Color,
		Note:     w.Note,
	}
}

// entryToWire converts a domain entry for upload, normalizing the week
// set to its canonical form.
func entryToWire(e schedule.ScheduleEntry) WireEntry {
	return WireEntry{
		ID:        e.ID,
		CourseID:  e.CourseID,
		DayOfWeek: e.DayOfWeek,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Weeks:     schedule.NewWeekSet(e.Weeks),
		Note:      e.Note,
	}
}

// entryFromWire converts a downloaded entry to the domain type.
func entryFromWire(w WireEntry) schedule.ScheduleEntry {
	return schedule.ScheduleEntry{
		ID:        w.ID,
		CourseID:  w.CourseID,
		DayOfWeek: w.DayOfWeek,
		StartTime: w.StartTime,
		EndTime:   w.EndTime,
		Weeks:     schedule.NewWeekSet(w.Weeks),
		Note:      w.Note,
	}
}

// datasetToWire converts a full dataset for upload.
func datasetToWire(d schedule.Dataset) ([]WireCourse, []WireEntry) {
	courses := make([]WireCourse, 0, len(d.Courses))
	for _, c := range d.Courses {
		courses = append(courses, courseToWire(c))
	}

	entries := make([]WireEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		entries = append(entries, entryToWire(e))
	}

	return courses, entries
}

// datasetFromWire converts downloaded lists to a domain dataset.
func datasetFromWire(courses []WireCourse, entries []WireEntry) schedule.Dataset {
	d := schedule.Dataset{
		Courses: make([]schedule.Course, 0, len(courses)),
		Entries: make([]schedule.ScheduleEntry, 0, len(entries)),
	}

	for _, c := range courses {
		d.Courses = append(d.Courses, courseFromWire(c))
	}

	for _, e := range entries {
		d.Entries = append(d.Entries, entryFromWire(e))
	}

	return d
}
