package syncq

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EntryState is the lifecycle of a queued record on the field device
type EntryState string

const (
	StateLocalOnly   EntryState = "local_only"   // captured, no sync scheduled yet
	StatePendingSync EntryState = "pending_sync" // queued, awaiting drain
	StateSynced      EntryState = "synced"       // acknowledged by the server
	StateError       EntryState = "error"        // terminal or retries exhausted
)

// EntryKind orders the drain: parents before children
type EntryKind string

const (
	KindInspection EntryKind = "inspection"
	KindRoom       EntryKind = "room"
	KindPhoto      EntryKind = "photo"
	KindPDF        EntryKind = "pdf"
	KindFinalize   EntryKind = "finalize"
)

// drainOrder is the fixed pass order of a drain cycle. A child is never
// submitted before its parent exists on the server.
var drainOrder = []EntryKind{KindInspection, KindRoom, KindPhoto, KindPDF, KindFinalize}

// Entry is one queued operation. ClientRef doubles as the server-side
// idempotency token, so resubmitting after a lost acknowledgment cannot
// create a duplicate.
type Entry struct {
	ID        uint       `gorm:"primaryKey"`
	Kind      EntryKind  `gorm:"type:varchar(20);not null;index"`
	State     EntryState `gorm:"type:varchar(20);not null;index"`
	ClientRef string     `gorm:"uniqueIndex;not null"`

	// ParentRef is the ClientRef of the parent entry (room -> inspection,
	// photo -> room). Empty for top-level entries.
	ParentRef string `gorm:"index"`

	// Payload is the JSON request body for the server operation
	Payload []byte

	// FilePath points at the local photo or PDF file for upload kinds
	FilePath string

	// ServerID is the id the server assigned on acknowledgment
	ServerID *uuid.UUID `gorm:"type:uuid"`

	TryCount  int
	LastError string
	Terminal  bool // rejected outright, retrying cannot help

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for Entry
func (Entry) TableName() string {
	return "queue_entries"
}

// Store is the durable local queue, backed by a sqlite file on the device
type Store struct {
	db *gorm.DB
}

// OpenStore opens (creating if needed) the queue database
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate queue schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Enqueue captures an operation as local_only; it becomes eligible for
// submission once a drain promotes it to pending_sync. Re-enqueueing the same
// ClientRef is a no-op returning the existing entry, so capture code can be
// retried freely.
func (s *Store) Enqueue(entry *Entry) (*Entry, error) {
	if entry.ClientRef == "" {
		entry.ClientRef = uuid.NewString()
	}
	if entry.State == "" {
		entry.State = StateLocalOnly
	}

	var existing Entry
	err := s.db.First(&existing, "client_ref = ?", entry.ClientRef).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := s.db.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Promote moves every local_only entry into pending_sync, marking it
// eligible for the drain that scheduled it
func (s *Store) Promote() (int64, error) {
	res := s.db.Model(&Entry{}).
		Where("state = ?", StateLocalOnly).
		Update("state", StatePendingSync)
	return res.RowsAffected, res.Error
}

// Pending returns the queued entries of one kind, oldest first
func (s *Store) Pending(kind EntryKind) ([]Entry, error) {
	var entries []Entry
	err := s.db.
		Where("kind = ? AND state = ?", kind, StatePendingSync).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// MarkSynced records the server acknowledgment
func (s *Store) MarkSynced(entry *Entry, serverID uuid.UUID) error {
	return s.db.Model(entry).Updates(map[string]interface{}{
		"state":      StateSynced,
		"server_id":  serverID,
		"last_error": "",
	}).Error
}

// MarkFailed records a failed attempt. Terminal rejections and exhausted
// retries move the entry to the error state for operator review; everything
// else stays pending for the next drain.
func (s *Store) MarkFailed(entry *Entry, cause string, terminal bool, maxTries int) error {
	entry.TryCount++
	updates := map[string]interface{}{
		"try_count":  entry.TryCount,
		"last_error": cause,
	}
	if terminal {
		updates["state"] = StateError
		updates["terminal"] = true
	} else if entry.TryCount >= maxTries {
		updates["state"] = StateError
	}
	return s.db.Model(entry).Updates(updates).Error
}

// Retry moves an errored entry back to pending with a fresh retry budget.
// Terminal entries need their payload fixed first; the caller decides.
func (s *Store) Retry(clientRef string) error {
	res := s.db.Model(&Entry{}).
		Where("client_ref = ? AND state = ?", clientRef, StateError).
		Updates(map[string]interface{}{
			"state":      StatePendingSync,
			"try_count":  0,
			"terminal":   false,
			"last_error": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no errored entry with ref %s", clientRef)
	}
	return nil
}

// Lookup fetches one entry by its ClientRef
func (s *Store) Lookup(clientRef string) (*Entry, error) {
	var entry Entry
	if err := s.db.First(&entry, "client_ref = ?", clientRef).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ServerIDFor resolves the server id of an already-synced parent entry
func (s *Store) ServerIDFor(clientRef string) (uuid.UUID, bool) {
	var entry Entry
	if err := s.db.First(&entry, "client_ref = ? AND state = ?", clientRef, StateSynced).Error; err != nil {
		return uuid.Nil, false
	}
	if entry.ServerID == nil {
		return uuid.Nil, false
	}
	return *entry.ServerID, true
}

// Counts summarizes the queue for status display
func (s *Store) Counts() (map[EntryState]int64, error) {
	type row struct {
		State EntryState
		Count int64
	}
	var rows []row
	if err := s.db.Model(&Entry{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[EntryState]int64, len(rows))
	for _, r := range rows {
		out[r.State] = r.Count
	}
	return out, nil
}

// Synced returns acknowledged entries that still have a local file attached,
// for post-sync cleanup
func (s *Store) Synced() ([]Entry, error) {
	var entries []Entry
	err := s.db.
		Where("state = ? AND file_path <> ''", StateSynced).
		Find(&entries).Error
	return entries, err
}

// ClearFile forgets the local file path once it has been removed
func (s *Store) ClearFile(entry *Entry) error {
	return s.db.Model(entry).Update("file_path", "").Error
}
