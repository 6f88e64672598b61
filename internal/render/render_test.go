package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"labrecord/internal/models"
)

// testPNG returns a small valid PNG for embedding tests.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func testInput(t *testing.T) Input {
	t.Helper()
	return Input{
		CourseTitle:    "Operating Systems Lab",
		StudentName:    "Alice",
		RegisterNumber: "RA2211003010001",
		Experiments: []models.Experiment{
			{ID: "exp-1", Title: "Process Scheduling", GithubLink: "https://github.com/alice/os-lab", Date: "2026-02-10"},
			{ID: "exp-2", Title: "Memory Management", GithubLink: "https://github.com/alice/os-lab-2"},
		},
		Logo: testPNG(t),
		QRCodes: map[string][]byte{
			"exp-1": testPNG(t),
		},
	}
}

func TestFormatDate(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{"iso date", "2026-02-10", "2/10/2026"},
		{"rfc3339", "2026-02-10T08:30:00Z", "2/10/2026"},
		{"datetime local", "2026-02-10T08:30", "2/10/2026"},
		{"us date", "02/10/2026", "2/10/2026"},
		{"free-form passthrough", "Week 3", "Week 3"},
		{"empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatDate(tc.raw); got != tc.want {
				t.Errorf("formatDate(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSniffImage(t *testing.T) {
	if format, ok := sniffImage(testPNG(t)); !ok || format != "png" {
		t.Errorf("Expected png, got %q (ok=%v)", format, ok)
	}
	if _, ok := sniffImage([]byte("definitely not an image")); ok {
		t.Error("Garbage bytes should not sniff as an image")
	}
	if _, ok := sniffImage(nil); ok {
		t.Error("Nil bytes should not sniff as an image")
	}
}
