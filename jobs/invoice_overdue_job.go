package jobs

import (
	"time"

	"go.uber.org/zap"

	"github.com/nekesa/tutorhub/services"
)

// MarkOverdueInvoices flips unpaid invoices past their due date to overdue.
func MarkOverdueInvoices() {
	zap.S().Info("Running job: MarkOverdueInvoices...")

	changed, err := services.Invoices.SweepOverdue(time.Now())
	if err != nil {
		zap.S().Errorf("Error marking overdue invoices: %v", err)
		return
	}

	if changed > 0 {
		zap.S().Infof("Marked %d invoice(s) as overdue.", changed)
	}
}
