package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, c))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int, image.Image) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy(), img
}

func TestProcessJPEG(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(100, 100)))
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" || len(result.Data) == 0 {
		t.Errorf("unexpected result: %s, %d bytes", result.MIME, len(result.Data))
	}
}

func TestProcessPNGFlattensTransparency(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestPNG(20, 20, color.RGBA{0, 0, 0, 0})))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
	}
	_, _, img := decodeSize(t, result.Data)
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected white background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestProcessDownscale(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(2000, 1000)))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}
	w, h, _ := decodeSize(t, result.Data)
	if w != MaxDimension || h != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, w, h)
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(50, 50)))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}
	w, h, _ := decodeSize(t, result.Data)
	if w != 50 || h != 50 {
		t.Errorf("small image should not be resized: got %dx%d", w, h)
	}
}

func TestThumbnail(t *testing.T) {
	photo, _ := Process(bytes.NewReader(createTestJPEG(400, 800)))
	thumb, err := Thumbnail(photo.Data)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	w, h, _ := decodeSize(t, thumb.Data)
	if w != ThumbnailDimension/2 || h != ThumbnailDimension {
		t.Errorf("expected %dx%d, got %dx%d", ThumbnailDimension/2, ThumbnailDimension, w, h)
	}
}

func TestProcessRejectsUnsupported(t *testing.T) {
	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a...")} {
		if _, err := Process(bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat for %q, got %v", data, err)
		}
	}
}

func TestProcessTooLarge(t *testing.T) {
	data := make([]byte, MaxUploadSize+10)
	if _, err := Process(bytes.NewReader(data)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
