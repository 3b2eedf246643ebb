package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	config "github.com/nekesa/tutorhub/configs"
	"github.com/nekesa/tutorhub/models"
)

const invoicePaymentTermDays = 14

// InvoiceService bills students for completed lessons. Billing runs through
// the same Store seam as the coordinator so tests substitute the fake; only
// the PDF path reads GORM associations directly. Now is injectable.
type InvoiceService struct {
	Store Store
	DB    *gorm.DB
	Now   func() time.Time
}

func NewInvoiceService(store Store, db *gorm.DB) *InvoiceService {
	return &InvoiceService{Store: store, DB: db, Now: time.Now}
}

// GenerateInvoice bills a student for every completed occurrence that is not
// yet invoiced and not already linked to an earlier invoice. The amount is
// the sum of each occurrence's lesson price.
func (s *InvoiceService) GenerateInvoice(studentID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.Store.WithinTx(func(tx Store) error {
		occurrences, err := tx.BillableOccurrences(studentID)
		if err != nil {
			return err
		}
		if len(occurrences) == 0 {
			return ErrNothingToInvoice
		}

		var amount float64
		for _, occ := range occurrences {
			amount += occ.Lesson.PricePerLesson
		}

		number, err := tx.NextInvoiceNumber()
		if err != nil {
			return err
		}

		invoice = models.Invoice{
			StudentID: studentID,
			Number:    number,
			Amount:    amount,
			DueDate:   s.Now().AddDate(0, 0, invoicePaymentTermDays),
			Status:    models.InvoiceUnpaid,
		}
		return tx.CreateInvoice(&invoice, occurrences)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// MarkPaid settles an invoice and flips every linked occurrence to invoiced.
// Paying an already-paid invoice is a no-op.
func (s *InvoiceService) MarkPaid(invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.Store.WithinTx(func(tx Store) error {
		var err error
		invoice, err = tx.GetInvoice(invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == models.InvoicePaid {
			return nil
		}

		invoice.Status = models.InvoicePaid
		if err := tx.SaveInvoice(invoice); err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(invoice.Occurrences))
		for i, occ := range invoice.Occurrences {
			ids[i] = occ.ID
		}
		return tx.MarkOccurrencesInvoiced(ids)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// SweepOverdue flips unpaid invoices whose due date has passed to overdue.
func (s *InvoiceService) SweepOverdue(today time.Time) (int64, error) {
	return s.Store.SweepOverdueInvoices(today)
}

// RenderAndUploadPDF renders the invoice statement to PDF in headless Chrome
// and uploads it to Cloudinary, storing the URL on the invoice.
func (s *InvoiceService) RenderAndUploadPDF(invoiceID uuid.UUID) (string, error) {
	var invoice models.Invoice
	if err := s.DB.Preload("Student").Preload("Occurrences.Lesson.Subject").First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	html, err := renderInvoiceHTML(&invoice)
	if err != nil {
		return "", fmt.Errorf("failed to render invoice HTML: %w", err)
	}
	pdf, err := printToPDF(html)
	if err != nil {
		return "", fmt.Errorf("failed to print invoice PDF: %w", err)
	}
	url, err := uploadInvoicePDF(pdf, invoice.Number)
	if err != nil {
		return "", fmt.Errorf("failed to upload invoice PDF: %w", err)
	}

	invoice.PDFURL = &url
	if err := s.DB.Save(&invoice).Error; err != nil {
		return "", err
	}
	zap.S().Infof("Uploaded PDF for invoice %s", invoice.Number)
	return url, nil
}

type invoiceLine struct {
	Date    string
	Subject string
	Time    string
	Price   float64
}

func renderInvoiceHTML(invoice *models.Invoice) (string, error) {
	tmpl, err := template.ParseFiles("templates/invoice.html")
	if err != nil {
		return "", err
	}

	lines := make([]invoiceLine, 0, len(invoice.Occurrences))
	for _, occ := range invoice.Occurrences {
		lines = append(lines, invoiceLine{
			Date:    occ.Date.Format("2006-01-02"),
			Subject: occ.Lesson.Subject.Name,
			Time:    FormatMinute(occ.StartMinute),
			Price:   occ.Lesson.PricePerLesson,
		})
	}

	data := struct {
		Number      string
		StudentName string
		IssuedDate  string
		DueDate     string
		Amount      float64
		Lines       []invoiceLine
	}{
		Number:      invoice.Number,
		StudentName: invoice.Student.FullName,
		IssuedDate:  invoice.CreatedAt.Format("January 2, 2006"),
		DueDate:     invoice.DueDate.Format("January 2, 2006"),
		Amount:      invoice.Amount,
		Lines:       lines,
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func printToPDF(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadInvoicePDF(fileBytes []byte, number string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("invoices/%s", number),
		Folder:       "tutorhub_invoices",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}
	return uploadResult.SecureURL, nil
}
