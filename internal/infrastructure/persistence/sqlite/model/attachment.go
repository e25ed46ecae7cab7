package model

import "time"

type Attachment struct {
	AttachmentID uint64    `gorm:"column:attachment_id;primaryKey;autoIncrement"`
	IssueID      uint64    `gorm:"column:issue_id;not null;index"`
	UploaderID   uint64    `gorm:"column:uploader_id;not null;index"`
	Filename     string    `gorm:"column:filename;type:text;not null"`
	ContentType  string    `gorm:"column:content_type;type:text;not null"`
	Size         int64     `gorm:"column:size;not null"`
	StorageKey   string    `gorm:"column:storage_key;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (Attachment) TableName() string {
	return "attachments"
}
