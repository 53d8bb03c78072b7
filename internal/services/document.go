package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"github.com/signintech/gopdf"

	"github.com/emineral/emineral-backend/internal/platform/gcp"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

const (
	docFontLatin      = "latin"
	docFontDevanagari = "devanagari"

	docMarginXMM  = 12.0
	docRightColMM = 110.0
	docLineHMM    = 5.0
	docQRSizeMM   = 35.0
	docQRXMM      = 160.0
	docFontSize   = 9.0
)

// Pass documents carry three identical copies on one A4 sheet, one per
// party in the consignment chain.
var docCopyOffsetsMM = []float64{14, 102, 190}

var docCopyHeadings = []string{
	"प्रथम प्रति (कार्यालय प्रति)",
	"द्वितीय प्रति (परिवहनकर्ता प्रति)",
	"तृतीय प्रति (प्राप्तकर्ता प्रति)",
}

// docCopyHeadingsLatin stands in when no Devanagari face is available, so the
// headings print as readable English instead of missing glyphs.
var docCopyHeadingsLatin = []string{
	"First Copy (Office Copy)",
	"Second Copy (Transporter Copy)",
	"Third Copy (Recipient Copy)",
}

// DocumentField is one label/value pair on the printed pass. Wrap pushes the
// value onto the following line for long free-text fields.
type DocumentField struct {
	Label string
	Value interface{}
	Wrap  bool
}

type DocumentInput struct {
	RecordID    string
	Fields      []DocumentField
	GeneratedOn string
	ValidUpto   string
	QRPNG       []byte
}

// DocumentService renders the printable pass PDF and stores it in the pdf
// bucket.
type DocumentService interface {
	Render(input DocumentInput) ([]byte, error)
	GenerateAndStore(ctx context.Context, recordID, ownerID uuid.UUID, input DocumentInput) (string, error)
}

type documentService struct {
	log    *logger.Logger
	bucket gcp.BucketService
}

func NewDocumentService(baseLog *logger.Logger, bucket gcp.BucketService) DocumentService {
	serviceLog := baseLog.With("service", "DocumentService")
	return &documentService{log: serviceLog, bucket: bucket}
}

func mmToPt(mm float64) float64 { return mm * 72.0 / 25.4 }

// containsDevanagari reports whether s has any rune in the Devanagari block.
func containsDevanagari(s string) bool {
	for _, r := range s {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}

// displayString renders any form value for print, with "-" standing in for
// anything absent so the grid stays aligned.
func displayString(v interface{}) string {
	if v == nil {
		return "-"
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return "-"
	}
	return s
}

var (
	fontMu    sync.Mutex
	fontCache = map[string][]byte{}
)

// loadFontFile caches faces per path so repeated renders do not re-read the
// font from disk.
func loadFontFile(path string) ([]byte, error) {
	fontMu.Lock()
	defer fontMu.Unlock()
	if raw, ok := fontCache[path]; ok {
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fontCache[path] = raw
	return raw, nil
}

func loadLatinFont() ([]byte, error) {
	path := strings.TrimSpace(os.Getenv("LATIN_FONT_PATH"))
	if path == "" {
		return nil, fmt.Errorf("LATIN_FONT_PATH not set; cannot render documents")
	}
	return loadFontFile(path)
}

// loadDevanagariFont returns nil when the face is unavailable or lacks
// Devanagari coverage; rendering then degrades to the latin face.
func loadDevanagariFont(log *logger.Logger) []byte {
	path := strings.TrimSpace(os.Getenv("DEVANAGARI_FONT_PATH"))
	if path == "" {
		return nil
	}
	raw, err := loadFontFile(path)
	if err != nil {
		if log != nil {
			log.Warn("devanagari font unreadable; headings fall back to latin face", "path", path, "error", err)
		}
		return nil
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		if log != nil {
			log.Warn("devanagari font unparseable; headings fall back to latin face", "path", path, "error", err)
		}
		return nil
	}
	if f.Index('क') == 0 {
		if log != nil {
			log.Warn("configured font has no Devanagari coverage; headings fall back to latin face", "path", path)
		}
		return nil
	}
	return raw
}

func (s *documentService) Render(input DocumentInput) ([]byte, error) {
	latin, err := loadLatinFont()
	if err != nil {
		return nil, err
	}
	devanagari := loadDevanagariFont(s.log)

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(docFontLatin, latin); err != nil {
		return nil, fmt.Errorf("register latin font: %w", err)
	}
	hasDevanagari := false
	if devanagari != nil {
		if err := pdf.AddTTFFontData(docFontDevanagari, devanagari); err != nil {
			s.log.Warn("devanagari font rejected by pdf writer; falling back to latin face", "error", err)
		} else {
			hasDevanagari = true
		}
	}

	var qrHolder gopdf.ImageHolder
	if len(input.QRPNG) > 0 {
		qrHolder, err = gopdf.ImageHolderByBytes(input.QRPNG)
		if err != nil {
			s.log.Warn("qr image unusable in pdf; printing without it", "error", err)
			qrHolder = nil
		}
	}

	headings := docCopyHeadings
	if !hasDevanagari {
		headings = docCopyHeadingsLatin
	}
	for i, offsetMM := range docCopyOffsetsMM {
		if err := s.renderCopy(&pdf, hasDevanagari, headings[i], offsetMM, input, qrHolder); err != nil {
			return nil, err
		}
	}

	raw, err := pdf.GetBytesPdfReturnErr()
	if err != nil {
		return nil, fmt.Errorf("serialize pdf: %w", err)
	}
	return raw, nil
}

func (s *documentService) setFontFor(pdf *gopdf.GoPdf, hasDevanagari bool, text string) error {
	name := docFontLatin
	if hasDevanagari && containsDevanagari(text) {
		name = docFontDevanagari
	}
	return pdf.SetFont(name, "", docFontSize)
}

func (s *documentService) cellAt(pdf *gopdf.GoPdf, hasDevanagari bool, xMM, yMM float64, text string) error {
	if err := s.setFontFor(pdf, hasDevanagari, text); err != nil {
		return fmt.Errorf("set font: %w", err)
	}
	pdf.SetXY(mmToPt(xMM), mmToPt(yMM))
	if err := pdf.Cell(nil, text); err != nil {
		return fmt.Errorf("write cell: %w", err)
	}
	return nil
}

func (s *documentService) renderCopy(pdf *gopdf.GoPdf, hasDevanagari bool, heading string, offsetMM float64, input DocumentInput, qrHolder gopdf.ImageHolder) error {
	if err := s.cellAt(pdf, hasDevanagari, docMarginXMM, offsetMM, heading); err != nil {
		return err
	}

	if qrHolder != nil {
		if err := pdf.ImageByHolder(qrHolder, mmToPt(docQRXMM), mmToPt(offsetMM), &gopdf.Rect{
			W: mmToPt(docQRSizeMM),
			H: mmToPt(docQRSizeMM),
		}); err != nil {
			s.log.Warn("qr embed failed; copy printed without it", "error", err)
		}
	}

	yMM := offsetMM + 2*docLineHMM
	col := 0
	for _, field := range input.Fields {
		value := displayString(field.Value)
		if field.Wrap {
			// Long free-text fields take a full row: label, then value below.
			if col == 1 {
				yMM += docLineHMM
				col = 0
			}
			if err := s.cellAt(pdf, hasDevanagari, docMarginXMM, yMM, field.Label+":"); err != nil {
				return err
			}
			yMM += docLineHMM
			if err := s.cellAt(pdf, hasDevanagari, docMarginXMM, yMM, value); err != nil {
				return err
			}
			yMM += docLineHMM
			continue
		}

		xMM := docMarginXMM
		if col == 1 {
			xMM = docRightColMM
		}
		if err := s.cellAt(pdf, hasDevanagari, xMM, yMM, fmt.Sprintf("%s: %s", field.Label, value)); err != nil {
			return err
		}
		if col == 1 {
			yMM += docLineHMM
		}
		col = 1 - col
	}
	if col == 1 {
		yMM += docLineHMM
	}

	if err := s.cellAt(pdf, hasDevanagari, docMarginXMM, yMM, fmt.Sprintf("Generated On: %s", displayString(input.GeneratedOn))); err != nil {
		return err
	}
	if err := s.cellAt(pdf, hasDevanagari, docRightColMM, yMM, fmt.Sprintf("Valid Upto: %s", displayString(input.ValidUpto))); err != nil {
		return err
	}
	return nil
}

// GenerateAndStore renders and uploads under pdfs/{ownerId}/{recordId}.pdf.
func (s *documentService) GenerateAndStore(ctx context.Context, recordID, ownerID uuid.UUID, input DocumentInput) (string, error) {
	raw, err := s.Render(input)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("pdfs/%s/%s.pdf", ownerID, recordID)
	uploadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := s.bucket.UploadFile(uploadCtx, gcp.BucketCategoryPDF, key, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("upload pdf: %w", err)
	}
	return s.bucket.GetPublicURL(gcp.BucketCategoryPDF, key), nil
}
