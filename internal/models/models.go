package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null;index"    json:"username"`
	Email        string    `gorm:"unique;not null;index"    json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	IsActive     bool      `gorm:"not null;default:true"    json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`

	Photos []Photo `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Tag struct {
	ID        uint      `gorm:"primaryKey"               json:"id"`
	Name      string    `gorm:"unique;not null;index"    json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Photos []Photo `gorm:"many2many:photo_tags" json:"-"`
}

type Photo struct {
	ID          uint      `gorm:"primaryKey"           json:"id"`
	UserID      uint      `gorm:"index;not null"       json:"user_id"`
	URL         string    `gorm:"size:500;not null"    json:"url"`
	PublicID    string    `gorm:"size:255;unique;not null" json:"public_id"`
	Description string    `gorm:"type:text"            json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	User            User                  `json:"-"`
	Tags            []Tag                 `gorm:"many2many:photo_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Comments        []Comment             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Ratings         []Rating              `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Transformations []PhotoTransformation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type PhotoTransformation struct {
	ID        uint      `gorm:"primaryKey"               json:"id"`
	PhotoID   uint      `gorm:"index;not null"           json:"photo_id"`
	URL       string    `gorm:"size:500;not null"        json:"url"`
	PublicID  string    `gorm:"size:255;unique;not null" json:"public_id"`
	Params    string    `gorm:"type:text"                json:"params"`
	QRCode    string    `gorm:"type:text"                json:"qr_code"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	Text      string    `gorm:"not null"       json:"text"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	PhotoID   uint      `gorm:"index;not null" json:"photo_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Rating struct {
	ID      uint `gorm:"primaryKey"                                          json:"id"`
	Score   int  `gorm:"not null;check:score >= 1 AND score <= 5"            json:"score"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_user_photo_rating"          json:"user_id"`
	PhotoID uint `gorm:"not null;index;uniqueIndex:idx_user_photo_rating"    json:"photo_id"`
}
