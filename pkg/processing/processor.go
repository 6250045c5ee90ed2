// Package processing loads, normalizes and encodes images for the region
// pipeline and the vision backends.
package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// MaxDownloadBytes bounds images fetched from URLs.
const MaxDownloadBytes = 32 << 20

// ErrUnknownFormat is returned for payloads no registered decoder accepts.
var ErrUnknownFormat = errors.New("image: unknown or unsupported format")

// Processor handles image decoding, encoding and overlays
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// LoadImageSmart loads from an http(s) URL or, otherwise, a file path
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// LoadImageFromURL downloads an image. The response must declare an image
// content type and is read up to MaxDownloadBytes.
func (p *Processor) LoadImageFromURL(ctx context.Context, rawURL string) (image.Image, error) {
	data, err := p.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return p.DecodeImage(data)
}

func (p *Processor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q, use http or https", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "fashion-extractor/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: HTTP %d", u.Host, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type %q)", ct)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes))
}

// LoadImage reads a file. EXIF orientation is applied for formats imaging
// understands; anything else goes through DecodeImage.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, readErr
	}
	if img, err = p.DecodeImage(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeBase64Image decodes a base64 payload, with or without a data URI prefix
func (p *Processor) DecodeBase64Image(payload string) (image.Image, error) {
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		if _, b64, found := strings.Cut(rest, ","); found {
			payload = b64
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return p.DecodeImage(data)
}

// DecodeImage decodes jpg, png or webp bytes
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	// chai2010/webp handles a few encodings x/image/webp rejects
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, ErrUnknownFormat
}

// EnsureRGB flattens transparency onto white and returns an opaque image
// whose bounds start at the origin.
func (p *Processor) EnsureRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// PrepareImageForModel shrinks img so its long side is at most maxDim
// (0 keeps the size) and returns it base64 encoded as png or jpg.
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if b := img.Bounds(); maxDim > 0 && max(b.Dx(), b.Dy()) > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	var err error
	if strings.EqualFold(format, "png") {
		err = (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return "", fmt.Errorf("encode for model: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeJPEG encodes img as JPEG
func (p *Processor) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage writes img as jpg (default), png or webp. quality applies to
// jpg and lossy webp.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	if !strings.EqualFold(format, "webp") {
		opts := []imaging.EncodeOption{}
		if !strings.EqualFold(format, "png") {
			opts = append(opts, imaging.JPEGQuality(quality))
		}
		return imaging.Save(img, path, opts...)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := webp.Encode(f, img, &webp.Options{Lossless: lossless, Quality: float32(quality)}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
