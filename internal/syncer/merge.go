package syncer

import (
	"log/slog"
	"sort"

	"github.com/classtop/classtop-sync/internal/schedule"
)

// Strategy selects which side's whole-entity value wins on a
// conflicting id.
type Strategy string

// Merge strategies. StrategyNewestWins is a stub: the data model
// carries no timestamps, so it behaves exactly like StrategyServerWins
// until entities gain a modified-at field.
const (
	StrategyServerWins Strategy = "server_wins"
	StrategyLocalWins  Strategy = "local_wins"
	StrategyNewestWins Strategy = "newest_wins"
)

// ValidStrategy reports whether s is a recognized strategy name.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyServerWins, StrategyLocalWins, StrategyNewestWins:
		return true
	}

	return false
}

// normalizeStrategy corrects an unrecognized strategy to server_wins
// with a warning rather than failing the sync.
func normalizeStrategy(s Strategy, logger *slog.Logger) Strategy {
	if ValidStrategy(s) {
		return s
	}

	logger.Warn("unknown merge strategy, falling back to server_wins",
		slog.String("strategy", string(s)))

	return StrategyServerWins
}

// Merge combines the two datasets into one under the given strategy.
// Precedence is whole-record last-writer-wins by id: the loser side's
// map is built first, then the winner side's entries are overlaid on
// top. Ids unique to either side are always preserved. Output order is
// by id; callers must not rely on it.
func Merge(local, server schedule.Dataset, strategy Strategy, logger *slog.Logger) schedule.Dataset {
	strategy = normalizeStrategy(strategy, logger)

	// newest_wins degrades to server_wins: there is no timestamp to
	// compare. Logged every time so the gap stays visible.
	if strategy == StrategyNewestWins {
		logger.Warn("newest_wins strategy is not implemented, using server_wins")

		strategy = StrategyServerWins
	}

	loser, winner := local, server
	if strategy == StrategyLocalWins {
		loser, winner = server, local
	}

	courses := loser.CourseByID()
	for id, c := range winner.CourseByID() {
		courses[id] = c
	}

	entries := loser.EntryByID()
	for id, e := range winner.EntryByID() {
		entries[id] = e
	}

	return schedule.Dataset{
		Courses: sortedCourses(courses),
		Entries: sortedEntries(entries),
	}
}

func sortedCourses(m map[int64]schedule.Course) []schedule.Course {
	out := make([]schedule.Course, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func sortedEntries(m map[int64]schedule.ScheduleEntry) []schedule.ScheduleEntry {
	out := make([]schedule.ScheduleEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}
