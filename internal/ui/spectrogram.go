package ui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderImage scales a PNG to width columns by height rows. Each cell is an
// upper half block whose foreground is the top pixel and whose background is
// the bottom pixel, so the image gets 2*height pixel rows.
func RenderImage(data []byte, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode png: %w", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return "", nil
	}

	pixel := func(x, y int) lipgloss.Color {
		sx := b.Min.X + x*b.Dx()/width
		sy := b.Min.Y + y*b.Dy()/(height*2)
		return hexColor(img.At(sx, sy))
	}

	rows := make([]string, height)
	for row := 0; row < height; row++ {
		var sb strings.Builder
		for col := 0; col < width; col++ {
			cell := lipgloss.NewStyle().
				Foreground(pixel(col, row*2)).
				Background(pixel(col, row*2+1))
			sb.WriteString(cell.Render("▀"))
		}
		rows[row] = sb.String()
	}
	return strings.Join(rows, "\n"), nil
}

// ImageSize returns the pixel dimensions of a PNG without decoding it fully.
func ImageSize(data []byte) (image.Point, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Point{}, fmt.Errorf("decode png config: %w", err)
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}

func hexColor(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8))
}
