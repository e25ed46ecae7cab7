package model

import "time"

// IssueHistory rows are append-only; nothing updates or deletes them
// except cascade removal of their issue.
type IssueHistory struct {
	HistoryID uint64    `gorm:"column:history_id;primaryKey;autoIncrement"`
	IssueID   uint64    `gorm:"column:issue_id;not null;index"`
	ActorID   uint64    `gorm:"column:actor_id;not null"`
	OldStatus *string   `gorm:"column:old_status;type:text"`
	NewStatus string    `gorm:"column:new_status;type:text;not null;index"`
	Comment   string    `gorm:"column:comment;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (IssueHistory) TableName() string {
	return "issue_history"
}
