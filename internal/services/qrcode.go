package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/emineral/emineral-backend/internal/platform/gcp"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

const (
	qrImageSize    = 300
	qrQuietModules = 2
)

// QRCodeService renders verification URLs as PNG images and stores them in
// the qr bucket.
type QRCodeService interface {
	PublicURL(publicToken string) string
	GeneratePNG(url string) ([]byte, error)
	GenerateAndStore(ctx context.Context, recordID, ownerID uuid.UUID, publicToken string) (string, []byte, error)
}

type qrCodeService struct {
	log           *logger.Logger
	bucket        gcp.BucketService
	publicBaseURL string
	now           func() time.Time
}

func NewQRCodeService(baseLog *logger.Logger, bucket gcp.BucketService, publicBaseURL string) QRCodeService {
	serviceLog := baseLog.With("service", "QRCodeService")
	return &qrCodeService{
		log:           serviceLog,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		now:           time.Now,
	}
}

// PublicURL is the verification address a scanned code resolves to.
func (s *qrCodeService) PublicURL(publicToken string) string {
	return fmt.Sprintf("%s/records/%s", s.publicBaseURL, publicToken)
}

// GeneratePNG encodes url at the highest error-correction level and draws the
// module grid onto a 300px canvas with a two-module quiet zone, black on
// white.
func (s *qrCodeService) GeneratePNG(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", ErrValidation)
	}

	qr, err := qrcode.New(url, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}
	qr.DisableBorder = true

	grid := qr.Bitmap()
	n := len(grid)
	if n == 0 {
		return nil, fmt.Errorf("empty qr matrix")
	}

	module := float64(qrImageSize) / float64(n+2*qrQuietModules)
	offset := module * qrQuietModules

	dc := gg.NewContext(qrImageSize, qrImageSize)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)
	for y := 0; y < n; y++ {
		for x := 0; x < len(grid[y]); x++ {
			if !grid[y][x] {
				continue
			}
			dc.DrawRectangle(offset+float64(x)*module, offset+float64(y)*module, module, module)
			dc.Fill()
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateAndStore renders the code and uploads it under
// qr-codes/{ownerId}/{recordId}-{unixnano}.png, returning the public URL and
// the raw PNG so the PDF renderer can reuse it without a round trip.
func (s *qrCodeService) GenerateAndStore(ctx context.Context, recordID, ownerID uuid.UUID, publicToken string) (string, []byte, error) {
	raw, err := s.GeneratePNG(s.PublicURL(publicToken))
	if err != nil {
		return "", nil, err
	}

	key := fmt.Sprintf("qr-codes/%s/%s-%d.png", ownerID, recordID, s.now().UnixNano())
	if err := s.bucket.UploadFile(ctx, gcp.BucketCategoryQR, key, bytes.NewReader(raw)); err != nil {
		return "", nil, fmt.Errorf("upload qr image: %w", err)
	}
	return s.bucket.GetPublicURL(gcp.BucketCategoryQR, key), raw, nil
}
