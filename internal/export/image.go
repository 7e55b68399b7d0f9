package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imageWidth   = 800
	imagePadding = 20
	lineHeight   = 18
	thumbWidth   = 200
)

// renderImage draws the document as a white JPEG card: optional thumbnail on
// top, then title, fields and wrapped body text.
func renderImage(doc Document) ([]byte, error) {
	face := basicfont.Face7x13
	maxChars := (imageWidth - 2*imagePadding) / face.Advance

	var lines []string
	lines = append(lines, doc.Title, "")
	for _, f := range doc.Fields {
		lines = append(lines, wrap(f.Label+": "+f.Value, maxChars)...)
	}
	if strings.TrimSpace(doc.Body) != "" {
		lines = append(lines, "")
		for _, para := range strings.Split(doc.Body, "\n") {
			lines = append(lines, wrap(para, maxChars)...)
		}
	}
	if doc.Caption != "" {
		lines = append(lines, "", doc.Caption)
	}

	thumb := loadThumbnail(doc.ImagePath)
	top := imagePadding
	if thumb != nil {
		top += thumb.Bounds().Dy() + imagePadding
	}
	height := top + len(lines)*lineHeight + imagePadding

	img := image.NewRGBA(image.Rect(0, 0, imageWidth, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if thumb != nil {
		x := (imageWidth - thumb.Bounds().Dx()) / 2
		r := image.Rect(x, imagePadding, x+thumb.Bounds().Dx(), imagePadding+thumb.Bounds().Dy())
		draw.Draw(img, r, thumb, thumb.Bounds().Min, draw.Over)
	}

	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(imagePadding, top+(i+1)*lineHeight)
		d.DrawString(line)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("image: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// loadThumbnail decodes path and scales it to thumbWidth. Unreadable or
// missing images yield nil.
func loadThumbnail(path string) image.Image {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil
	}
	if src.Bounds().Dx() <= thumbWidth {
		return src
	}
	return resize.Resize(thumbWidth, 0, src, resize.Lanczos3)
}

// wrap splits s into lines of at most width runes, breaking on spaces.
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, w := range words {
		for len([]rune(w)) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(w)
			lines = append(lines, string(r[:width]))
			w = string(r[width:])
		}
		switch {
		case cur == "":
			cur = w
		case len([]rune(cur))+1+len([]rune(w)) <= width:
			cur += " " + w
		default:
			lines = append(lines, cur)
			cur = w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
