package snapshotstore

import (
	"context"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// AuditRecorder is implemented by both Auditor and NoopAuditor so the
// Document Actor doesn't need to know whether MySQL is configured.
type AuditRecorder interface {
	Record(ctx context.Context, docName string, r Record)
}

// AuditRecord is one row of the snapshot_audit table: an observational
// log of every successful object-store snapshot write. It is never read
// back to reconstruct state — the object store blob is always the source
// of truth per spec.md §4.5 — so a MySQL outage never blocks replay.
type AuditRecord struct {
	ID           uint `gorm:"primaryKey"`
	DocName      string
	CheckpointB64 string
	MessageCount int
	WrittenAt    time.Time
}

func (AuditRecord) TableName() string { return "snapshot_audit" }

// Auditor writes AuditRecords, following the teacher's InitMySQL pattern
// (gorm.Open(mysql.Open(dsn), ...)) but scoped to this one table.
type Auditor struct {
	db *gorm.DB
}

func NewAuditor(dsn string) (*Auditor, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&AuditRecord{}); err != nil {
		return nil, err
	}
	return &Auditor{db: db}, nil
}

// Record inserts an audit row. Failures are logged, not propagated: the
// snapshot write to the object store has already succeeded by the time
// this is called, and the audit trail is observational only.
func (a *Auditor) Record(ctx context.Context, docName string, r Record) {
	row := AuditRecord{
		DocName:       docName,
		CheckpointB64: r.Checkpoint.EncodeBase64(),
		MessageCount:  r.MessageCount,
		WrittenAt:     r.WrittenAt,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("snapshotstore: audit insert failed for doc %q: %v", docName, err)
	}
}

// NoopAuditor is used when no MySQL DSN is configured.
type NoopAuditor struct{}

func (NoopAuditor) Record(ctx context.Context, docName string, r Record) {}
