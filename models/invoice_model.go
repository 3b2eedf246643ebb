package models

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type Invoice struct {
	ID        uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID uuid.UUID     `gorm:"not null" json:"student_id"`
	Number    string        `gorm:"size:20;not null;unique" json:"number"`
	Amount    float64       `gorm:"type:numeric(10,2);not null" json:"amount"`
	DueDate   time.Time     `gorm:"not null" json:"due_date"`
	Status    InvoiceStatus `gorm:"size:20;not null;default:'unpaid'" json:"status"`
	PDFURL    *string       `gorm:"size:255" json:"pdf_url"`

	Student     User                `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Occurrences []*LessonOccurrence `gorm:"many2many:invoice_occurrences;" json:"occurrences,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
