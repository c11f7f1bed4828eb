package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtop/classtop-sync/internal/schedule"
)

func sampleDataset() schedule.Dataset {
	return schedule.Dataset{
		Courses: []schedule.Course{
			{ID: 1, Name: "Math", Teacher: "Chen", Location: "A101", Color: "#112233"},
			{ID: 2, Name: "Physics", Teacher: "Li", Location: "B202", Color: "#445566"},
		},
		Entries: []schedule.ScheduleEntry{
			{ID: 10, CourseID: 1, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:40", Weeks: schedule.WeekSet{1, 2, 3}},
			{ID: 11, CourseID: 2, DayOfWeek: 3, StartTime: "10:00", EndTime: "11:40"},
		},
	}
}

func TestDetect_IdenticalDatasetsHaveNoConflicts(t *testing.T) {
	d := sampleDataset()

	result := Detect(d, d)
	assert.False(t, result.HasConflicts())
	assert.Zero(t, result.Count())
}

func TestDetect_SingleFieldChangeYieldsExactlyOneConflict(t *testing.T) {
	local := sampleDataset()
	server := sampleDataset()
	server.Courses[0].Teacher = "Wang"

	result := Detect(local, server)
	require.True(t, result.HasConflicts())
	require.Len(t, result.Courses, 1)
	assert.Empty(t, result.Entries)
	assert.Equal(t, int64(1), result.Courses[0].ID)
	assert.Equal(t, "Chen", result.Courses[0].Local.Teacher)
	assert.Equal(t, "Wang", result.Courses[0].Server.Teacher)
}

func TestDetect_EntryFieldChange(t *testing.T) {
	local := sampleDataset()
	server := sampleDataset()
	server.Entries[1].StartTime = "10:30"

	result := Detect(local, server)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, int64(11), result.Entries[0].ID)
	assert.Empty(t, result.Courses)
}

func TestDetect_WeekSetsCompareAsSetsAfterNormalization(t *testing.T) {
	local := sampleDataset()
	server := sampleDataset()

	// Same set, different order and duplicates: not a conflict.
	server.Entries[0].Weeks = schedule.WeekSet{3, 2, 1, 1}
	result := Detect(local, server)
	assert.False(t, result.HasConflicts())

	// Genuinely different set: one conflict.
	server.Entries[0].Weeks = schedule.WeekSet{1, 2}
	result = Detect(local, server)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, int64(10), result.Entries[0].ID)
}

func TestDetect_OneSidedIDsAreNotConflicts(t *testing.T) {
	local := schedule.Dataset{Courses: []schedule.Course{{ID: 1, Name: "Math"}}}
	server := schedule.Dataset{Courses: []schedule.Course{{ID: 2, Name: "Physics"}}}

	result := Detect(local, server)
	assert.False(t, result.HasConflicts())
}

func TestDetect_CourseNoteIsNotCompared(t *testing.T) {
	local := sampleDataset()
	server := sampleDataset()
	server.Courses[0].Note = "server-side annotation"

	result := Detect(local, server)
	assert.False(t, result.HasConflicts())
}

func TestDetect_DoesNotMutateInputs(t *testing.T) {
	local := sampleDataset()
	server := sampleDataset()
	server.Entries[0].Weeks = schedule.WeekSet{3, 2, 1}

	_ = Detect(local, server)

	assert.Equal(t, schedule.WeekSet{1, 2, 3}, local.Entries[0].Weeks)
	assert.Equal(t, schedule.WeekSet{3, 2, 1}, server.Entries[0].Weeks)
}
