package model

import "time"

type Issue struct {
	IssueID     uint64    `gorm:"column:issue_id;primaryKey;autoIncrement"`
	Title       string    `gorm:"column:title;type:text;not null;index"`
	Description string    `gorm:"column:description;type:text;not null"`
	Severity    string    `gorm:"column:severity;type:text;not null;index"`
	Status      string    `gorm:"column:status;type:text;not null;index"`
	ReporterID  uint64    `gorm:"column:reporter_id;not null;index"`
	AssigneeID  *uint64   `gorm:"column:assignee_id;index"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (Issue) TableName() string {
	return "issues"
}
