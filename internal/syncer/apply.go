package syncer

import (
	"log/slog"

	"github.com/classtop/classtop-sync/internal/schedule"
	"github.com/classtop/classtop-sync/internal/store"
)

// ApplyResult reports what a best-effort apply pass managed to write.
// Partial application is expected behavior, not an error: failures are
// counted and logged, and the caller decides whether the pass as a
// whole was a total loss.
type ApplyResult struct {
	CoursesApplied int
	EntriesApplied int
	Failures       int
}

// TotalFailure reports whether nothing at all could be written even
// though there was something to write.
func (r ApplyResult) TotalFailure() bool {
	return r.Failures > 0 && r.CoursesApplied == 0 && r.EntriesApplied == 0
}

// applyDataset writes a merged dataset into the local store with
// update-if-exists / insert-if-new semantics per entity.
//
// Courses whose id already exists locally are updated in place; courses
// the server contributed that have no local counterpart are inserted
// under their server-assigned id (the store advances its id sequence
// past imported ids, so no remapping table is needed). Entries have no
// partial-update primitive, so an existing id is deleted and fully
// re-inserted under the same id.
func applyDataset(st *store.Store, merged schedule.Dataset, logger *slog.Logger) ApplyResult {
	var result ApplyResult

	localCourses, err := st.AllCourses()
	if err != nil {
		logger.Error("reading local courses before apply", slog.Any("error", err))
		result.Failures++

		return result
	}

	localEntries, err := st.AllScheduleEntries()
	if err != nil {
		logger.Error("reading local entries before apply", slog.Any("error", err))
		result.Failures++

		return result
	}

	haveCourse := make(map[int64]bool, len(localCourses))
	for _, c := range localCourses {
		haveCourse[c.ID] = true
	}

	haveEntry := make(map[int64]bool, len(localEntries))
	for _, e := range localEntries {
		haveEntry[e.ID] = true
	}

	for _, course := range merged.Courses {
		if course.ID <= 0 {
			continue
		}

		var err error
		if haveCourse[course.ID] {
			err = st.UpdateCourse(course)
		} else {
			err = st.PutCourse(course)
		}

		if err != nil {
			logger.Warn("applying course failed",
				slog.Int64("course_id", course.ID),
				slog.Any("error", err))

			result.Failures++

			continue
		}

		result.CoursesApplied++
	}

	for _, entry := range merged.Entries {
		if entry.ID <= 0 {
			continue
		}

		if haveEntry[entry.ID] {
			if err := st.DeleteScheduleEntry(entry.ID); err != nil {
				logger.Warn("removing stale schedule entry failed",
					slog.Int64("entry_id", entry.ID),
					slog.Any("error", err))

				result.Failures++

				continue
			}
		}

		if err := st.PutScheduleEntry(entry); err != nil {
			logger.Warn("applying schedule entry failed",
				slog.Int64("entry_id", entry.ID),
				slog.Any("error", err))

			result.Failures++

			continue
		}

		result.EntriesApplied++
	}

	return result
}
