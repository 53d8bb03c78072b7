package services

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/image/font/gofont/goregular"
)

func TestContainsDevanagari(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"Transport Pass", false},
		{"प्रथम प्रति", true},
		{"mixed प्रति text", true},
		{"12-05-2025 10:30:00 AM", false},
	}
	for _, tc := range cases {
		if got := containsDevanagari(tc.in); got != tc.want {
			t.Errorf("containsDevanagari(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDisplayString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, "-"},
		{"", "-"},
		{"   ", "-"},
		{"MH12AB0001", "MH12AB0001"},
		{"  padded  ", "padded"},
		{42, "42"},
		{12.5, "12.5"},
	}
	for _, tc := range cases {
		if got := displayString(tc.in); got != tc.want {
			t.Errorf("displayString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMMToPt(t *testing.T) {
	// A4 width is 210mm = 595.27… points.
	if got := mmToPt(210); math.Abs(got-595.275) > 0.01 {
		t.Fatalf("mmToPt(210) = %f, want ~595.275", got)
	}
}

// writeTestFont drops the bundled Go Regular face into a temp file so a real
// render can run without any host font configuration.
func writeTestFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write test font: %v", err)
	}
	return path
}

func TestDocumentService_Render(t *testing.T) {
	t.Setenv("LATIN_FONT_PATH", writeTestFont(t))
	t.Setenv("DEVANAGARI_FONT_PATH", "")

	svc := NewDocumentService(testLogger(t), newFakeBucket())
	qrSvc := NewQRCodeService(testLogger(t), nil, "https://pass.example.gov.in")
	qrPNG, err := qrSvc.GeneratePNG("https://pass.example.gov.in/records/ABCD1234EFGH5678")
	if err != nil {
		t.Fatalf("GeneratePNG: %v", err)
	}

	raw, err := svc.Render(DocumentInput{
		RecordID: uuid.NewString(),
		Fields: []DocumentField{
			{Label: "License No", Value: "LIC-778"},
			{Label: "Vehicle No", Value: "MH12AB0001"},
			{Label: "Mineral", Value: "Basalt"},
			{Label: "Quantity (MT)", Value: 17.5},
			{Label: "Destination Address", Value: "Plot 4, Industrial Estate, Nagpur", Wrap: true},
			{Label: "Driver Name", Value: nil},
		},
		GeneratedOn: "12-05-2025 10:30:00 AM",
		ValidUpto:   "13-05-2025 10:30:00 AM",
		QRPNG:       qrPNG,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("output is not a pdf, starts with %q", raw[:min(len(raw), 8)])
	}
	// Three copies with an embedded QR each add real weight; a near-empty
	// document would signal a silently dropped copy.
	if len(raw) < 5000 {
		t.Fatalf("pdf suspiciously small: %d bytes", len(raw))
	}
}

func TestDocumentService_GenerateAndStore(t *testing.T) {
	t.Setenv("LATIN_FONT_PATH", writeTestFont(t))
	t.Setenv("DEVANAGARI_FONT_PATH", "")

	bucket := newFakeBucket()
	svc := NewDocumentService(testLogger(t), bucket)
	recordID, ownerID := uuid.New(), uuid.New()

	url, err := svc.GenerateAndStore(context.Background(), recordID, ownerID, DocumentInput{
		RecordID: recordID.String(),
		Fields:   []DocumentField{{Label: "Vehicle No", Value: "MH12AB0001"}},
	})
	if err != nil {
		t.Fatalf("GenerateAndStore: %v", err)
	}
	wantKey := "pdf/pdfs/" + ownerID.String() + "/" + recordID.String() + ".pdf"
	keys := bucket.keys()
	if len(keys) != 1 || keys[0] != wantKey {
		t.Fatalf("stored keys = %v, want [%s]", keys, wantKey)
	}
	if url == "" {
		t.Fatalf("empty public url")
	}
}

func TestDocumentService_RenderWithoutFontFails(t *testing.T) {
	t.Setenv("LATIN_FONT_PATH", "")
	svc := NewDocumentService(testLogger(t), newFakeBucket())
	_, err := svc.Render(DocumentInput{
		RecordID: "r1",
		Fields:   []DocumentField{{Label: "Vehicle No", Value: "MH12AB0001"}},
	})
	if err == nil {
		t.Fatalf("expected error without a configured font")
	}
}

func TestCopyLayoutConstants(t *testing.T) {
	if len(docCopyOffsetsMM) != len(docCopyHeadings) {
		t.Fatalf("offsets (%d) and headings (%d) out of step", len(docCopyOffsetsMM), len(docCopyHeadings))
	}
	for i := 1; i < len(docCopyOffsetsMM); i++ {
		if docCopyOffsetsMM[i] <= docCopyOffsetsMM[i-1] {
			t.Fatalf("copy offsets not strictly increasing: %v", docCopyOffsetsMM)
		}
	}
	for _, h := range docCopyHeadings {
		if !containsDevanagari(h) {
			t.Fatalf("heading %q lost its Devanagari text", h)
		}
	}
	if len(docCopyHeadingsLatin) != len(docCopyHeadings) {
		t.Fatalf("latin fallback headings (%d) out of step with %d copies", len(docCopyHeadingsLatin), len(docCopyHeadings))
	}
	for _, h := range docCopyHeadingsLatin {
		if containsDevanagari(h) {
			t.Fatalf("fallback heading %q must be renderable by the latin face", h)
		}
	}
}
