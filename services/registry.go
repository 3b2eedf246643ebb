package services

import "gorm.io/gorm"

// Package-level service instances, wired once at startup.
var (
	Ledger   Store
	Lessons  *LessonService
	Invoices *InvoiceService
)

func Init(db *gorm.DB) {
	Ledger = NewStore(db)
	Lessons = NewLessonService(Ledger)
	Invoices = NewInvoiceService(Ledger, db)
}
