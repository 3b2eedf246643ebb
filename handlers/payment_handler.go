package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nekesa/tutorhub/database"
	"github.com/nekesa/tutorhub/models"
	"github.com/nekesa/tutorhub/services"
)

type mpesaCallback struct {
	Response struct {
		ResultCode    int    `json:"ResultCode"`
		ResultDesc    string `json:"ResultDesc"`
		InvoiceNumber string `json:"InvoiceNumber"`
	} `json:"response"`
}

// MpesaWebhook receives the KCB Buni payment confirmation and settles the
// matching invoice. The gateway prefixes our invoice number with the org
// account, so only the trailing part is matched.
func MpesaWebhook(c *fiber.Ctx) error {
	var callback mpesaCallback
	if err := c.BodyParser(&callback); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if callback.Response.ResultCode != 0 {
		zap.S().Warnf("M-Pesa payment failed: %s", callback.Response.ResultDesc)
		return c.JSON(fiber.Map{"message": "Callback acknowledged"})
	}

	number := callback.Response.InvoiceNumber
	if idx := strings.Index(number, "-INV-"); idx >= 0 {
		number = number[idx+1:]
	}

	var invoice models.Invoice
	if err := database.DB.First(&invoice, "number = ?", number).Error; err != nil {
		zap.S().Errorf("M-Pesa callback for unknown invoice %q", callback.Response.InvoiceNumber)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invoice not found"})
	}

	if _, err := services.Invoices.MarkPaid(invoice.ID); err != nil {
		zap.S().Errorf("Failed to settle invoice %s from M-Pesa callback: %v", invoice.Number, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to settle invoice"})
	}

	zap.S().Infof("✅ Invoice %s settled via M-Pesa", invoice.Number)
	return c.JSON(fiber.Map{"message": "Payment recorded"})
}
