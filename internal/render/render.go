// Package render builds the printable "Table of Contents" lab record
// sheet. Both renderers are pure functions of their input: layout, fonts
// and borders are fixed presentation constants, and a missing logo or QR
// image leaves blank space in its slot instead of failing the document.
package render

import (
	"bytes"
	"image"
	"time"

	// Registered so image.DecodeConfig can sniff the embedded formats.
	_ "image/jpeg"
	_ "image/png"

	"labrecord/internal/models"
)

// Input carries everything a renderer needs. QRCodes maps experiment id to
// PNG bytes; both image fields may be nil or partially populated.
type Input struct {
	CourseTitle    string
	StudentName    string
	RegisterNumber string
	Experiments    []models.Experiment
	Logo           []byte
	QRCodes        map[string][]byte
}

const confirmationText = "I confirm that the experiments and GitHub links provided are entirely my own work."

// Table column headers, in order.
var tableHeaders = [6]string{"Exp No", "Date", "Experiment Title", "QR Code", "Marks", "Signature"}

// formatDate renders a stored experiment date for display. The field is
// free-form: recognized layouts are reformatted, anything else passes
// through untouched.
func formatDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04", "01/02/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return raw
}

// sniffImage reports whether data is a decodable image and its format
// ("png", "jpeg", ...). Renderers skip anything undecodable rather than
// poisoning the document.
func sniffImage(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	return format, true
}
