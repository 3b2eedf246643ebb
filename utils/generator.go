package utils

import (
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/nekesa/tutorhub/models"
)

const invoiceNumberLength = 8
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateInvoiceNumber produces an "INV-XXXXXXXX" number that is not yet
// taken, retrying until one is free.
func GenerateInvoiceNumber(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		b := make([]byte, invoiceNumberLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		number := "INV-" + string(b)

		var invoice models.Invoice
		err := tx.Where("number = ?", number).First(&invoice).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return number, nil
			}
			return "", err
		}
	}
}
