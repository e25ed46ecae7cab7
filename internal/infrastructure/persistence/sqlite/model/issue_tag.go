package model

type IssueTag struct {
	TagID   uint64 `gorm:"column:tag_id;primaryKey;autoIncrement"`
	IssueID uint64 `gorm:"column:issue_id;not null;index"`
	Name    string `gorm:"column:name;type:text;not null"`
	Color   string `gorm:"column:color;type:text;not null;default:'#3498db'"`
}

func (IssueTag) TableName() string {
	return "issue_tags"
}
