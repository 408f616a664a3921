package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const thumbnailQuality = 70

var (
	ErrUnsupportedImage = fmt.Errorf("unsupported image")
	ErrImageTooLarge    = fmt.Errorf("image exceeds upload limit")
)

type Config struct {
	MaxSize        int   `mapstructure:"maxSize"`
	ThumbnailSize  int   `mapstructure:"thumbnailSize"`
	MaxUploadBytes int64 `mapstructure:"maxUploadBytes"`

	// decoded width*height limit, checked from the header before decoding
	MaxPixels int64 `mapstructure:"maxPixels"`
}

func DefaultConfig() Config {
	return Config{
		MaxSize:        1024,
		ThumbnailSize:  96,
		MaxUploadBytes: 10 << 20,
		MaxPixels:      50_000_000,
	}
}

// Prepared is an uploaded image ready to be sent to the worker.
type Prepared struct {
	// PNG encoded, longest side at most Config.MaxSize
	Data []byte

	// JPEG data URL
	Thumbnail string

	Preview model.ImagePreview
}

// Prepare decodes r and produces the worker payload, a thumbnail and a preview.
func Prepare(r io.Reader, name string, config Config) (prepared *Prepared, err error) {
	raw, err := io.ReadAll(io.LimitReader(r, config.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(raw)) > config.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes allowed", ErrImageTooLarge, config.MaxUploadBytes)
	}
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
	}
	if pixels := int64(header.Width) * int64(header.Height); config.MaxPixels > 0 && pixels > config.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, header.Width, header.Height, config.MaxPixels)
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
	}
	bounds := src.Bounds()

	resized := Scale(src, config.MaxSize)
	var data bytes.Buffer
	if err = png.Encode(&data, resized); err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}

	thumbnail, err := Thumbnail(src, config.ThumbnailSize)
	if err != nil {
		return nil, err
	}

	prepared = &Prepared{
		Data:      data.Bytes(),
		Thumbnail: thumbnail,
		Preview: model.ImagePreview{
			Name:          name,
			Width:         bounds.Dx(),
			Height:        bounds.Dy(),
			ResizedWidth:  resized.Bounds().Dx(),
			ResizedHeight: resized.Bounds().Dy(),
			Resized:       resized.Bounds().Size() != bounds.Size(),
			SizeKB:        int(math.Round(float64(len(raw)) / 1024)),
		},
	}
	return
}

// Scale returns src shrunk so its longest side is at most maxSide. Smaller images are returned unchanged.
func Scale(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	scale := math.Min(1, float64(maxSide)/float64(max(w, h)))
	if scale >= 1 {
		return src
	}
	dw := max(1, int(math.Round(float64(w)*scale)))
	dh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// Thumbnail encodes a small JPEG copy of src as a data URL.
func Thumbnail(src image.Image, maxSide int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Scale(src, maxSide), &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
