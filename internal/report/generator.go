package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/vistohub/vistoriago/internal/models"
)

// Data aggregates everything rendered into an inspection report
type Data struct {
	Company    models.Company
	Property   models.Property
	Inspection models.Inspection
	Inspector  models.User

	// ContestURL is the public dispute link encoded into the QR code;
	// empty disables the QR block.
	ContestURL string
}

var typeLabels = map[models.InspectionType]string{
	models.TypeMoveIn:   "Move-in",
	models.TypeMoveOut:  "Move-out",
	models.TypePeriodic: "Periodic",
}

// Generate renders the inspection report PDF
func Generate(data Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Inspection Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, data.Company.Name, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Property block
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Property", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Address: "+data.Property.Address, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Type: %s    Code: %s", data.Property.Type, data.Property.Code), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Owner: "+data.Property.OwnerName, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Inspection block
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Inspection", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	label := typeLabels[data.Inspection.Type]
	if label == "" {
		label = string(data.Inspection.Type)
	}
	pdf.CellFormat(0, 6, "Type: "+label, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Inspector: "+data.Inspector.Name, "", 1, "L", false, 0, "")
	if data.Inspection.ScheduledFor != nil {
		pdf.CellFormat(0, 6, "Date: "+data.Inspection.ScheduledFor.Format("2006-01-02"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Rooms
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Rooms", "B", 1, "L", false, 0, "")
	for _, room := range data.Inspection.Rooms {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, fmt.Sprintf("%d. %s", room.Position+1, room.Name), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		if room.Condition != "" {
			pdf.MultiCell(0, 5, "Condition: "+room.Condition, "", "L", false)
		}
		if n := len(room.Photos); n > 0 {
			pdf.CellFormat(0, 5, fmt.Sprintf("Photos: %d", n), "", 1, "L", false, 0, "")
		}
		pdf.Ln(1)
	}

	// Contest QR block
	if data.ContestURL != "" {
		qrPng, err := qrcode.Encode(data.ContestURL, qrcode.Low, 256)
		if err != nil {
			return nil, err
		}

		imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		_ = pdf.RegisterImageOptionsReader("contest_qr", imgOptions, bytes.NewReader(qrPng))

		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, "Scan to dispute this report:", "", 1, "L", false, 0, "")
		x := pdf.GetX()
		y := pdf.GetY()
		pdf.ImageOptions("contest_qr", x, y, 25, 25, false, imgOptions, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
