package models

import (
	"time"

	"github.com/google/uuid"
)

type Tutor struct {
	UserID    uuid.UUID `gorm:"primary_key" json:"user_id"`
	Headline  *string   `gorm:"size:255" json:"headline"`
	Bio       *string   `gorm:"type:text" json:"bio"`
	Status    string    `gorm:"size:20;not null;default:'pending'" json:"status"`
	User      User      `gorm:"foreignkey:UserID" json:"user"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
