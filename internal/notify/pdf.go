package notify

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// buildTicketPDF renders the entry ticket: event header, holder address,
// the redemption token as a QR image and the entry instructions. The token
// appears only inside the QR payload, never as text.
func buildTicketPDF(code, token, email, eventName, eventDate string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(token, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(26, 54, 93)
	pdf.CellFormat(0, 12, eventName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(74, 85, 104)
	pdf.CellFormat(0, 8, eventDate, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(45, 55, 72)
	pdf.CellFormat(0, 7, fmt.Sprintf("Ticket %s issued to %s", code, email), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pageW, _ := pdf.GetPageSize()
	const qrSize = 80.0
	pdf.ImageOptions("qr", (pageW-qrSize)/2, pdf.GetY(), qrSize, qrSize, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + qrSize + 10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(26, 54, 93)
	pdf.CellFormat(0, 6, "INSTRUCTIONS", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(74, 85, 104)
	for _, line := range []string{
		"- Present this ticket at the entrance",
		"- This ticket is valid for one entry only",
		"- Entry is subject to verification",
	} {
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(113, 128, 150)
	pdf.CellFormat(0, 5, "This ticket is non-transferable.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err = pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
