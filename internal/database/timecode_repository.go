package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TimecodeRepository provides journal operations for timecode samples
type TimecodeRepository struct {
	db *gorm.DB
}

// NewTimecodeRepository creates a new repository instance
func NewTimecodeRepository(db *gorm.DB) *TimecodeRepository {
	return &TimecodeRepository{db: db}
}

// Insert stores a single record
func (r *TimecodeRepository) Insert(record *TimecodeRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if !record.IsValid() {
		return fmt.Errorf("record is not valid: session=%q transport=%q mtc=%d bytes",
			record.SessionID, record.Transport, len(record.MTC))
	}
	return r.db.Create(record).Error
}

// InsertBatch stores records in one transaction, skipping invalid ones
func (r *TimecodeRepository) InsertBatch(records []TimecodeRecord) (int, error) {
	valid := make([]TimecodeRecord, 0, len(records))
	for _, record := range records {
		if record.IsValid() {
			valid = append(valid, record)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	const batchSize = 500
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(valid, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("batch insert of %d records failed: %w", len(valid), err)
	}
	return len(valid), nil
}

// Count returns the total number of records
func (r *TimecodeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&TimecodeRecord{}).Count(&count).Error
	return count, err
}

// CountByTransport returns the number of records per transport state
func (r *TimecodeRepository) CountByTransport(sessionID string) (map[string]int64, error) {
	var rows []struct {
		Transport string
		Count     int64
	}

	query := r.db.Model(&TimecodeRecord{}).Select("transport, COUNT(*) as count")
	if sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	if err := query.Group("transport").Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Transport] = row.Count
	}
	return counts, nil
}

// Latest returns the most recent record, optionally for one session.
// It returns nil without error when the journal is empty.
func (r *TimecodeRepository) Latest(sessionID string) (*TimecodeRecord, error) {
	var record TimecodeRecord

	query := r.db.Order("id DESC")
	if sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	err := query.First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Since returns records recorded after the given time, oldest first
func (r *TimecodeRepository) Since(since time.Time, limit int) ([]TimecodeRecord, error) {
	var records []TimecodeRecord
	err := r.db.Where("recorded_at > ?", since).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// DeleteBefore removes records older than cutoff and returns how many went
func (r *TimecodeRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("recorded_at < ?", cutoff).Delete(&TimecodeRecord{})
	return result.RowsAffected, result.Error
}

// Reclaim returns pages freed by DeleteBefore to the filesystem
func (r *TimecodeRepository) Reclaim() error {
	return r.db.Exec("PRAGMA incremental_vacuum").Error
}

// HealthCheck verifies the repository is working correctly
func (r *TimecodeRepository) HealthCheck() error {
	var count int64
	return r.db.Model(&TimecodeRecord{}).Count(&count).Error
}
