package model

import "time"

type Comment struct {
	CommentID uint64    `gorm:"column:comment_id;primaryKey;autoIncrement"`
	IssueID   uint64    `gorm:"column:issue_id;not null;index"`
	AuthorID  uint64    `gorm:"column:author_id;not null;index"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Comment) TableName() string {
	return "comments"
}
