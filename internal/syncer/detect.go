package syncer

import "github.com/classtop/classtop-sync/internal/schedule"

// CourseConflict pairs the two divergent snapshots of one course id.
type CourseConflict struct {
	ID     int64
	Local  schedule.Course
	Server schedule.Course
}

// EntryConflict pairs the two divergent snapshots of one schedule
// entry id.
type EntryConflict struct {
	ID     int64
	Local  schedule.ScheduleEntry
	Server schedule.ScheduleEntry
}

// DetectResult lists every same-id entity whose comparable fields
// differ between the two sides. Ids present on only one side are
// additions, not conflicts.
type DetectResult struct {
	Courses []CourseConflict
	Entries []EntryConflict
}

// HasConflicts reports whether any divergence was found.
func (r DetectResult) HasConflicts() bool {
	return len(r.Courses) > 0 || len(r.Entries) > 0
}

// Count returns the total number of conflicted ids.
func (r DetectResult) Count() int {
	return len(r.Courses) + len(r.Entries)
}

// coursesDiverge compares the fields the server round-trips for a
// course. Note is client-local and deliberately excluded.
func coursesDiverge(local, server schedule.Course) bool {
	return local.Name != server.Name ||
		local.Teacher != server.Teacher ||
		local.Location != server.Location ||
		local.Color != server.Color
}

// entriesDiverge compares schedule entry fields. Week sets are
// normalized through the codec first so a string-serialized local list
// and a native server list compare as sets.
func entriesDiverge(local, server schedule.ScheduleEntry) bool {
	return local.CourseID != server.CourseID ||
		local.DayOfWeek != server.DayOfWeek ||
		local.StartTime != server.StartTime ||
		local.EndTime != server.EndTime ||
		!schedule.NewWeekSet(local.Weeks).Equal(schedule.NewWeekSet(server.Weeks))
}

// Detect performs a field-level comparison of the two datasets and
// returns every conflicting id with both full snapshots. Neither input
// is modified.
func Detect(local, server schedule.Dataset) DetectResult {
	var result DetectResult

	serverCourses := server.CourseByID()

	for _, lc := range local.Courses {
		sc, ok := serverCourses[lc.ID]
		if !ok {
			continue
		}

		if coursesDiverge(lc, sc) {
			result.Courses = append(result.Courses, CourseConflict{ID: lc.ID, Local: lc, Server: sc})
		}
	}

	serverEntries := server.EntryByID()

	for _, le := range local.Entries {
		se, ok := serverEntries[le.ID]
		if !ok {
			continue
		}

		if entriesDiverge(le, se) {
			result.Entries = append(result.Entries, EntryConflict{ID: le.ID, Local: le, Server: se})
		}
	}

	return result
}
