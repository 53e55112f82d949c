// Package preview renders thumbnail payloads as terminal art.
//
// Thumbnails arrive as data URIs. Decode turns one into an image; Render
// scales it to fit a cell box and draws it with upper half blocks, two
// pixel rows per terminal row, the top pixel as foreground colour and the
// bottom pixel as background colour.
package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const halfBlock = "▀"

// ErrEmpty is returned for an empty payload.
var ErrEmpty = errors.New("empty thumbnail payload")

// Decode parses a data URI ("data:image/jpeg;base64,...") or a bare base64
// payload into an image.
func Decode(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data uri")
		}
		header := payload[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("unsupported data uri encoding %q", header)
		}
		payload = payload[comma+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Fit returns the largest pixel size with img's aspect ratio that fits into
// cols x rows cells. Each cell holds one pixel across and two down.
func Fit(img image.Image, cols, rows int) (int, int) {
	b := img.Bounds()
	if cols <= 0 || rows <= 0 || b.Dx() <= 0 || b.Dy() <= 0 {
		return 0, 0
	}
	maxW, maxH := cols, rows*2
	w := maxW
	h := b.Dy() * maxW / b.Dx()
	if h > maxH {
		h = maxH
		w = b.Dx() * maxH / b.Dy()
	}
	return max(w, 1), max(h, 1)
}

// Render draws img scaled into at most cols x rows cells. Lines are joined
// with newlines; an odd last pixel row is drawn against the terminal
// background.
func Render(img image.Image, cols, rows int) string {
	w, h := Fit(img, cols, rows)
	if w == 0 {
		return ""
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			style := lipgloss.NewStyle().Foreground(hex(dst.At(x, y)))
			if y+1 < h {
				style = style.Background(hex(dst.At(x, y+1)))
			}
			sb.WriteString(style.Render(halfBlock))
		}
	}
	return sb.String()
}

// RenderPayload decodes payload and renders it.
func RenderPayload(payload string, cols, rows int) (string, error) {
	img, err := Decode(payload)
	if err != nil {
		return "", err
	}
	return Render(img, cols, rows), nil
}

func hex(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
