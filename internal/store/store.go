// Package store persists the local timetable dataset, runtime sync
// settings, and the append-only sync history in a single bbolt database.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/classtop/classtop-sync/internal/schedule"
)

const (
	// storeDirPerm is the permission mode for the data directory
	// (~/.classtop-sync/).
	storeDirPerm = fs.FileMode(0o700)

	// storeFilePerm is the permission mode for the database file.
	storeFilePerm = fs.FileMode(0o600)

	// storeOpenTimeout is the maximum time to wait for the bolt
	// database lock.
	storeOpenTimeout = 5 * time.Second
)

var (
	coursesBucket  = []byte("courses")
	entriesBucket  = []byte("schedule_entries")
	settingsBucket = []byte("settings")
	historyBucket  = []byte("sync_history")
)

// ErrNotFound is returned when an entity id does not exist locally.
var ErrNotFound = fmt.Errorf("not found")

// Store wraps a bbolt database holding courses, schedule entries,
// settings, and sync history.
type Store struct {
	db *bolt.DB
}

// DefaultPath returns the default database location,
// ~/.classtop-sync/classtop.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".classtop-sync", "classtop.db"), nil
}

// Open opens the database at the given path, creating it and all
// buckets if they do not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bolt.Open(path, storeFilePerm, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{coursesBucket, entriesBucket, settingsBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// itob encodes an id as a big-endian key so bucket iteration order
// matches numeric order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}

// --- Courses ---

// AddCourse inserts a new course with a store-assigned id, filling in
// the default color when none is set. The assigned id is written back
// to c.
func (s *Store) AddCourse(c *schedule.Course) error {
	if c.Color == "" {
		c.Color = schedule.DefaultCourseColor
	}

	if err := c.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(coursesBucket)

		id, err := b.NextSequence()
		if err != nil {
			return err
		}

		c.ID = int64(id)

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		return b.Put(itob(id), data)
	})
	if err != nil {
		return fmt.Errorf("adding course: %w", err)
	}

	return nil
}

// PutCourse upserts a course under an explicit id. Used by the sync
// applier to import server-originated courses while preserving their
// identifiers; the id sequence is advanced past imported ids so later
// local inserts never collide.
func (s *Store) PutCourse(c schedule.Course) error {
	if c.ID <= 0 {
		return fmt.Errorf("putting course: id must be positive, got %d", c.ID)
	}

	if c.Color == "" {
		c.Color = schedule.DefaultCourseColor
	}

	if err := c.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(coursesBucket)

		if uint64(c.ID) > b.Sequence() {
			if err := b.SetSequence(uint64(c.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		return b.Put(itob(uint64(c.ID)), data)
	})
	if err != nil {
		return fmt.Errorf("putting course: %w", err)
	}

	return nil
}

// UpdateCourse replaces the fields of an existing course.
// Returns ErrNotFound when the id does not exist.
func (s *Store) UpdateCourse(c schedule.Course) error {
	if err := c.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(coursesBucket)

		key := itob(uint64(c.ID))
		if b.Get(key) == nil {
			return fmt.Errorf("course %d: %w", c.ID, ErrNotFound)
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		return b.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("updating course: %w", err)
	}

	return nil
}

// Course returns one course by id, or ErrNotFound.
func (s *Store) Course(id int64) (*schedule.Course, error) {
	var c schedule.Course

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(coursesBucket).Get(itob(uint64(id)))
		if data == nil {
			return fmt.Errorf("course %d: %w", id, ErrNotFound)
		}

		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// DeleteCourse removes a course and every schedule entry that
// references it.
func (s *Store) DeleteCourse(id int64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(coursesBucket).Delete(itob(uint64(id))); err != nil {
			return err
		}

		entries := tx.Bucket(entriesBucket)

		c := entries.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e schedule.ScheduleEntry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}

			if e.CourseID == id {
				if err := entries.Delete(k); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting course: %w", err)
	}

	return nil
}

// AllCourses returns every local course in id order.
func (s *Store) AllCourses() ([]schedule.Course, error) {
	var courses []schedule.Course

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(coursesBucket).ForEach(func(_, v []byte) error {
			var c schedule.Course
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}

			courses = append(courses, c)

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}

	return courses, nil
}

// --- Schedule entries ---

// AddScheduleEntry inserts a new entry with a store-assigned id,
// written back to e.
func (s *Store) AddScheduleEntry(e *schedule.ScheduleEntry) error {
	e.Weeks = schedule.NewWeekSet(e.Weeks)

	if err := e.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)

		id, err := b.NextSequence()
		if err != nil {
			return err
		}

		e.ID = int64(id)

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}

		return b.Put(itob(id), data)
	})
	if err != nil {
		return fmt.Errorf("adding schedule entry: %w", err)
	}

	return nil
}

// PutScheduleEntry upserts an entry under an explicit id, advancing the
// id sequence past it. The applier uses this for the delete-and-reinsert
// path so the entry keeps its identifier across syncs.
func (s *Store) PutScheduleEntry(e schedule.ScheduleEntry) error {
	if e.ID <= 0 {
		return fmt.Errorf("putting schedule entry: id must be positive, got %d", e.ID)
	}

	e.Weeks = schedule.NewWeekSet(e.Weeks)

	if err := e.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)

		if uint64(e.ID) > b.Sequence() {
			if err := b.SetSequence(uint64(e.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}

		return b.Put(itob(uint64(e.ID)), data)
	})
	if err != nil {
		return fmt.Errorf("putting schedule entry: %w", err)
	}

	return nil
}

// DeleteScheduleEntry removes one entry by id. Deleting a missing id is
// not an error.
func (s *Store) DeleteScheduleEntry(id int64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete(itob(uint64(id)))
	})
	if err != nil {
		return fmt.Errorf("deleting schedule entry: %w", err)
	}

	return nil
}

// AllScheduleEntries returns every local schedule entry in id order.
func (s *Store) AllScheduleEntries() ([]schedule.ScheduleEntry, error) {
	var entries []schedule.ScheduleEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, v []byte) error {
			var e schedule.ScheduleEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			entries = append(entries, e)

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing schedule entries: %w", err)
	}

	return entries, nil
}

// Snapshot reads the full local dataset in one call.
func (s *Store) Snapshot() (schedule.Dataset, error) {
	courses, err := s.AllCourses()
	if err != nil {
		return schedule.Dataset{}, err
	}

	entries, err := s.AllScheduleEntries()
	if err != nil {
		return schedule.Dataset{}, err
	}

	return schedule.Dataset{Courses: courses, Entries: entries}, nil
}

// --- Settings ---

// Setting returns the value stored under key, or def when unset.
func (s *Store) Setting(key, def string) string {
	value := def

	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(settingsBucket).Get([]byte(key)); v != nil {
			value = string(v)
		}

		return nil
	})

	return value
}

// SetSetting stores a settings value.
func (s *Store) SetSetting(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	return nil
}

// SettingBool returns a boolean setting, falling back to def for unset
// or unparseable values.
func (s *Store) SettingBool(key string, def bool) bool {
	raw := s.Setting(key, strconv.FormatBool(def))

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}

	return v
}

// SettingInt returns an integer setting, falling back to def for unset
// or unparseable values.
func (s *Store) SettingInt(key string, def int) int {
	raw := s.Setting(key, strconv.Itoa(def))

	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return v
}

// --- Sync history ---

// AppendHistory appends one audit row. The record id and timestamp are
// assigned here; existing rows are never touched.
func (s *Store) AppendHistory(rec *schedule.SyncHistoryRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)

		id, err := b.NextSequence()
		if err != nil {
			return err
		}

		rec.ID = id

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return b.Put(itob(id), data)
	})
	if err != nil {
		return fmt.Errorf("appending sync history: %w", err)
	}

	return nil
}

// RecentHistory returns up to limit rows, most recent first. A limit of
// zero or less returns everything.
func (s *Store) RecentHistory(limit int) ([]schedule.SyncHistoryRecord, error) {
	var records []schedule.SyncHistoryRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec schedule.SyncHistoryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			records = append(records, rec)

			if limit > 0 && len(records) >= limit {
				return nil
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading sync history: %w", err)
	}

	return records, nil
}
