package models

import (
	"time"

	"github.com/google/uuid"
)

type Term struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"size:255;not null;unique" json:"name"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
