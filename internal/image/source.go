// Package image loads inspection images from files or URLs.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"thermal-annotator/pkg/geometry"
)

// MaxDownloadBytes caps the size of a fetched image.
const MaxDownloadBytes = 64 << 20

// Source is a decoded inspection image. Width and Height are the natural
// pixel dimensions every box is expressed in.
type Source struct {
	Ref    string // path or URL it was loaded from
	Image  image.Image
	Width  int
	Height int
}

// NewSource wraps an already decoded image.
func NewSource(ref string, img image.Image) *Source {
	b := img.Bounds()
	return &Source{Ref: ref, Image: img, Width: b.Dx(), Height: b.Dy()}
}

// Size returns the natural image size.
func (s *Source) Size() geometry.Size {
	return geometry.NewSize(float64(s.Width), float64(s.Height))
}

// LoadError reports an image that could not be fetched or decoded. The
// annotation surface stays disabled when loading fails.
type LoadError struct {
	Ref string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Ref, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader fetches images. The zero value uses a client with a 30s timeout.
type Loader struct {
	Client *http.Client
}

// Load loads ref with the default loader.
func Load(ctx context.Context, ref string) (*Source, error) {
	return (&Loader{}).Load(ctx, ref)
}

// Load reads ref, which may be an http(s) URL, a file:// URL or a path.
func (l *Loader) Load(ctx context.Context, ref string) (*Source, error) {
	data, err := l.read(ctx, ref)
	if err != nil {
		return nil, &LoadError{Ref: ref, Err: err}
	}
	img, err := Decode(data)
	if err != nil {
		return nil, &LoadError{Ref: ref, Err: err}
	}
	src := NewSource(ref, img)
	if src.Width <= 0 || src.Height <= 0 {
		return nil, &LoadError{Ref: ref, Err: fmt.Errorf("image has no pixels")}
	}
	return src, nil
}

func (l *Loader) read(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return l.fetch(ctx, ref)
	}
	path := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, err
		}
		path = u.Path
	}
	return os.ReadFile(path)
}

func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxDownloadBytes)
	}
	return data, nil
}

// Decode decodes PNG, JPEG, TIFF, BMP or WebP data. EXIF orientation is
// applied so boxes line up with what the operator sees.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unknown or unsupported format: %w", err)
	}
	return img, nil
}

// SupportedFormats returns the file extensions Load understands.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".webp"}
}

// IsSupportedFormat checks the extension of path.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
