package models

import "time"

// SyncRun is one recorded sync attempt.
type SyncRun struct {
	ID         string             `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Trigger    string             `gorm:"column:trigger;type:varchar(16)" json:"trigger"`
	Revision   string             `gorm:"column:revision;type:varchar(64);index" json:"revision"`
	Status     string             `gorm:"column:status;type:varchar(16)" json:"status"`
	Tables     int                `gorm:"column:tables;type:int" json:"tables"`
	Languages  int                `gorm:"column:languages;type:int" json:"languages"`
	Fetched    int                `gorm:"column:fetched;type:int" json:"fetched"`
	Confidence map[string]float64 `gorm:"column:confidence;type:text;serializer:json" json:"confidence,omitempty"`
	Error      string             `gorm:"column:error;type:text" json:"error,omitempty"`
	StartedAt  time.Time          `gorm:"column:started_at;type:datetime;index" json:"started_at"`
	FinishedAt time.Time          `gorm:"column:finished_at;type:datetime" json:"finished_at"`
}

// TableName overrides the table name used by GORM.
func (SyncRun) TableName() string {
	return "sync_runs"
}

// Duration is the wall time of the run.
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
