package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Fixed PDF layout, in millimeters on A4 portrait.
const (
	pdfLogoWidth    = 100.0
	pdfLogoHeight   = 25.0
	pdfLogoY        = 10.0
	pdfTitleY       = 45.0
	pdfCourseY      = 55.0
	pdfTableStartY  = 75.0
	pdfRowHeight    = 25.0
	pdfTopMargin    = 15.0
	pdfBottomMargin = 12.0
)

var pdfColWidths = [6]float64{20, 25, 80, 25, 20, 25}

// PDF renders the table of contents sheet as a PDF document.
func PDF(in Input) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pageWidth, pageHeight := pdf.GetPageSize()

	// College logo, centered. Skipped when absent or undecodable.
	if format, ok := sniffImage(in.Logo); ok {
		opts := fpdf.ImageOptions{ImageType: fpdfImageType(format)}
		pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(in.Logo))
		pdf.ImageOptions("logo", (pageWidth-pdfLogoWidth)/2, pdfLogoY, pdfLogoWidth, pdfLogoHeight, false, opts, 0, "")
	}

	pdf.SetFont("Helvetica", "", 17)
	pdf.SetTextColor(0, 0, 0)
	centerText(pdf, pageWidth/2, pdfTitleY, "Table of Contents")
	centerText(pdf, pageWidth/2, pdfCourseY, in.CourseTitle)

	tableWidth := 0.0
	for _, w := range pdfColWidths {
		tableWidth += w
	}
	startX := (pageWidth - tableWidth) / 2

	// Header row: heavier border, Helvetica 14. Redrawn at the top of
	// every page the table spills onto.
	drawHeader := func(y float64) {
		pdf.SetFont("Helvetica", "", 14)
		pdf.SetFillColor(255, 255, 255)
		pdf.Rect(startX, y, tableWidth, pdfRowHeight, "F")
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.8)
		pdf.Rect(startX, y, tableWidth, pdfRowHeight, "D")

		x := startX
		for i, header := range tableHeaders {
			if i > 0 {
				pdf.Line(x, y, x, y+pdfRowHeight)
			}
			centerText(pdf, x+pdfColWidths[i]/2, y+15, header)
			x += pdfColWidths[i]
		}

		// Data rows: Times 12, lighter borders.
		pdf.SetFont("Times", "", 12)
		pdf.SetLineWidth(0.5)
	}
	drawHeader(pdfTableStartY)

	rowY := pdfTableStartY + pdfRowHeight
	var currentX float64

	for i, experiment := range in.Experiments {
		if rowY+pdfRowHeight > pageHeight-pdfBottomMargin {
			pdf.AddPage()
			drawHeader(pdfTopMargin)
			rowY = pdfTopMargin + pdfRowHeight
		}
		pdf.SetFillColor(255, 255, 255)
		pdf.Rect(startX, rowY, tableWidth, pdfRowHeight, "F")
		pdf.SetDrawColor(0, 0, 0)
		pdf.Rect(startX, rowY, tableWidth, pdfRowHeight, "D")

		currentX = startX

		// Exp No
		centerText(pdf, currentX+pdfColWidths[0]/2, rowY+12, fmt.Sprintf("%d", i+1))
		currentX += pdfColWidths[0]
		pdf.Line(currentX, rowY, currentX, rowY+pdfRowHeight)

		// Date
		centerText(pdf, currentX+pdfColWidths[1]/2, rowY+12, formatDate(experiment.Date))
		currentX += pdfColWidths[1]
		pdf.Line(currentX, rowY, currentX, rowY+pdfRowHeight)

		// Title, then repository link in blue.
		textY := rowY + 8
		for _, line := range pdf.SplitText(experiment.Title, pdfColWidths[2]-4) {
			pdf.Text(currentX+2, textY, line)
			textY += 4
		}
		pdf.SetTextColor(0, 0, 255)
		for _, line := range pdf.SplitText(experiment.GithubLink, pdfColWidths[2]-4) {
			pdf.Text(currentX+2, textY, line)
			textY += 4
		}
		pdf.SetTextColor(0, 0, 0)
		currentX += pdfColWidths[2]
		pdf.Line(currentX, rowY, currentX, rowY+pdfRowHeight)

		// QR code; blank cell when the code is missing or undecodable.
		if qr, ok := in.QRCodes[experiment.ID]; ok {
			if format, valid := sniffImage(qr); valid {
				name := fmt.Sprintf("qr-%d", i)
				opts := fpdf.ImageOptions{ImageType: fpdfImageType(format)}
				pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(qr))
				pdf.ImageOptions(name, currentX+5, rowY+2, 15, 15, false, opts, 0, "")
			}
		}
		currentX += pdfColWidths[3]
		pdf.Line(currentX, rowY, currentX, rowY+pdfRowHeight)

		// Marks (left empty for the evaluator)
		currentX += pdfColWidths[4]
		pdf.Line(currentX, rowY, currentX, rowY+pdfRowHeight)

		// Signature (left empty)

		rowY += pdfRowHeight
	}

	// Confirmation and signature block below the last row, pushed to a
	// fresh page when there is no room left for it.
	finalY := rowY + 20
	if finalY+30 > pageHeight-pdfBottomMargin {
		pdf.AddPage()
		finalY = pdfTopMargin + 10
	}
	pdf.SetFont("Times", "", 12)
	centerText(pdf, pageWidth/2, finalY, confirmationText)

	detailsY := finalY + 20
	pdf.Text(20, detailsY, "Name: "+in.StudentName)
	pdf.Text(20, detailsY+10, "Date:")
	pdf.Text(pageWidth/2+10, detailsY, "Register Number: "+in.RegisterNumber)
	pdf.Text(pageWidth/2+10, detailsY+10, "Learner Signature:")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// centerText draws s centered horizontally on x with baseline y.
func centerText(pdf *fpdf.Fpdf, x, y float64, s string) {
	pdf.Text(x-pdf.GetStringWidth(s)/2, y, s)
}

func fpdfImageType(format string) string {
	switch format {
	case "jpeg":
		return "JPG"
	case "png":
		return "PNG"
	default:
		return ""
	}
}
