package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"github.com/dmitrijs2005/vipclub/internal/server/objectstore"
)

const (
	barcodeHeight    = 120
	barcodeModule    = 3
	barcodeMediaType = "image/png"
)

// Barcode render sources.
const (
	sourceRendered = "rendered"
	sourceCache    = "cache"
)

// BarcodeService renders membership codes as Code128 PNGs. With a store it
// caches renders under barcodes/<code>.png and can presign them.
type BarcodeService struct {
	store   objectstore.Store
	log     logging.Logger
	metrics *metrics.Metrics
}

// NewBarcodeService accepts a nil store, which disables caching and
// presigned URLs.
func NewBarcodeService(store objectstore.Store, log logging.Logger, m *metrics.Metrics) *BarcodeService {
	return &BarcodeService{store: store, log: log.With("module", "barcode"), metrics: m}
}

// BarcodeKey is the object key of code's rendered image.
func BarcodeKey(code string) string {
	return "barcodes/" + url.PathEscape(code) + ".png"
}

// RenderBarcode encodes code as a Code128 PNG, barcodeModule pixels per bar
// module and barcodeHeight pixels high.
func RenderBarcode(code string) ([]byte, error) {
	bc, err := code128.Encode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	scaled, err := barcode.Scale(bc, bc.Bounds().Dx()*barcodeModule, barcodeHeight)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PNG returns the barcode image for code, from the cache when possible.
// Cache failures are logged and never fail the request.
func (s *BarcodeService) PNG(ctx context.Context, code string) ([]byte, error) {
	if code == "" {
		return nil, ErrMembershipNotFound
	}

	key := BarcodeKey(code)
	if s.store != nil {
		data, err := s.store.Get(ctx, key)
		if err == nil {
			s.metrics.BarcodeRender(sourceCache)
			return data, nil
		}
		if !errors.Is(err, objectstore.ErrNotFound) {
			s.log.Warn(ctx, "barcode cache read failed", "key", key, "error", err)
		}
	}

	data, err := RenderBarcode(code)
	if err != nil {
		return nil, err
	}
	s.metrics.BarcodeRender(sourceRendered)

	if s.store != nil {
		if err := s.store.Put(ctx, key, barcodeMediaType, data); err != nil {
			s.log.Warn(ctx, "barcode cache write failed", "key", key, "error", err)
		}
	}
	return data, nil
}

// PresignedURL makes sure code's image is in the bucket and returns a
// time-limited GET URL for it.
func (s *BarcodeService) PresignedURL(ctx context.Context, code string) (string, time.Duration, error) {
	if s.store == nil {
		return "", 0, ErrObjectStorageDisabled
	}
	if code == "" {
		return "", 0, ErrMembershipNotFound
	}

	key := BarcodeKey(code)
	if _, err := s.store.Get(ctx, key); err != nil {
		if !errors.Is(err, objectstore.ErrNotFound) {
			return "", 0, err
		}
		data, err := RenderBarcode(code)
		if err != nil {
			return "", 0, err
		}
		s.metrics.BarcodeRender(sourceRendered)
		if err := s.store.Put(ctx, key, barcodeMediaType, data); err != nil {
			return "", 0, err
		}
	}

	return s.store.PresignGet(ctx, key)
}
