package database

import (
	"fmt"
	"time"
)

// TimecodeRecord is one published timecode sample as stored in the journal
type TimecodeRecord struct {
	ID         uint64    `gorm:"primarykey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"index;size:36;not null" json:"session_id"`
	Transport  string    `gorm:"index;size:16;not null" json:"transport"`
	Framerate  string    `gorm:"size:8" json:"framerate"`
	Hours      uint8     `json:"hours"`
	Minutes    uint8     `json:"minutes"`
	Seconds    uint8     `json:"seconds"`
	Frames     uint8     `json:"frames"`
	Frame      int64     `json:"frame"`
	MTC        []byte    `gorm:"size:10" json:"mtc"`
	Sequence   int64     `gorm:"index" json:"sequence"`
	RecordedAt time.Time `gorm:"index" json:"recorded_at"`
}

// TableName specifies the table name for GORM
func (TimecodeRecord) TableName() string {
	return "timecode_samples"
}

// Timecode returns the record's timecode as HH:MM:SS:FF
func (r TimecodeRecord) Timecode() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", r.Hours, r.Minutes, r.Seconds, r.Frames)
}

// IsValid checks if the record has required fields
func (r TimecodeRecord) IsValid() bool {
	return r.SessionID != "" && r.Transport != "" && len(r.MTC) == 10
}

// String returns a formatted string representation
func (r TimecodeRecord) String() string {
	return fmt.Sprintf("%s %s %s (frame %d)", r.Transport, r.Timecode(), r.Framerate, r.Frame)
}
