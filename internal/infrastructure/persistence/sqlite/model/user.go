package model

import "time"

type User struct {
	UserID         uint64    `gorm:"column:user_id;primaryKey;autoIncrement"`
	Email          string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name           string    `gorm:"column:name;type:text;not null"`
	HashedPassword string    `gorm:"column:hashed_password;type:text"`
	Role           string    `gorm:"column:role;type:text;not null"`
	IsActive       bool      `gorm:"column:is_active;not null;default:1"`
	IsOAuthUser    bool      `gorm:"column:is_oauth_user;not null;default:0"`
	OAuthProvider  string    `gorm:"column:oauth_provider;type:text"`
	ProfileImage   string    `gorm:"column:profile_image;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (User) TableName() string {
	return "users"
}
