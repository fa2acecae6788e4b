// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"strings"
	"unicode"
	"unicode/utf8"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	_ "golang.org/x/image/webp"
)

const (
	announceWidth  = 1000
	announceHeight = 300

	cardPad        = 40
	avatarSize     = 64
	titleGap       = 20
	authorGap      = 40
	borderPad      = 16
	borderRadius   = 32
	maxDrawingSide = 1024
)

var (
	ErrNoDrawing = errors.New("no drawing to render")

	announceBackground = color.NRGBA{30, 30, 40, 255}
	announceTitle      = color.NRGBA{200, 200, 255, 255}
	announceTheme      = color.NRGBA{180, 120, 255, 255}
	cardBackground     = color.NRGBA{40, 40, 40, 255}
	fallbackBorder     = color.NRGBA{60, 60, 70, 255}

	avatarColors = []color.NRGBA{
		{239, 83, 80, 255},
		{171, 71, 188, 255},
		{92, 107, 192, 255},
		{41, 182, 246, 255},
		{38, 166, 154, 255},
		{156, 204, 101, 255},
		{255, 167, 38, 255},
		{141, 110, 99, 255},
	}
)

// Renderer composes announcement and gallery images. Font faces are not
// safe for concurrent use, so each call builds its own.
type Renderer struct {
	regular *truetype.Font
	bold    *truetype.Font
}

func NewRenderer() (*Renderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold}, nil
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Announcement renders the theme banner posted when a round opens.
func (r *Renderer) Announcement(theme string) ([]byte, error) {
	dc := gg.NewContext(announceWidth, announceHeight)
	dc.SetColor(announceBackground)
	dc.Clear()

	dc.SetFontFace(face(r.regular, 36))
	dc.SetColor(announceTitle)
	dc.DrawStringAnchored("Theme for today is:", announceWidth/2, 90, 0.5, 0.5)

	// shrink long themes to fit the banner
	size := 54.0
	themeFace := face(r.bold, size)
	dc.SetFontFace(themeFace)
	for w, _ := dc.MeasureString(theme); w > announceWidth-2*cardPad && size > 20; w, _ = dc.MeasureString(theme) {
		size -= 4
		dc.SetFontFace(face(r.bold, size))
	}
	dc.SetColor(announceTheme)
	dc.DrawStringAnchored(theme, announceWidth/2, 180, 0.5, 0.5)

	return encode(dc)
}

// Card describes one gallery entry.
type Card struct {
	Theme  string
	Date   string
	Author string
	// Avatar may be nil; initials are drawn instead.
	Avatar  []byte
	Drawing []byte
}

// Card renders a submission with its title, author row and a rounded
// border in the drawing's most common colour.
func (r *Renderer) Card(c Card) ([]byte, error) {
	if len(c.Drawing) == 0 {
		return nil, ErrNoDrawing
	}
	drawing, _, err := image.Decode(bytes.NewReader(c.Drawing))
	if err != nil {
		return nil, fmt.Errorf("decode drawing: %w", err)
	}
	drawing = fit(drawing, maxDrawingSide)

	avatar := r.avatar(c.Avatar, c.Author)

	title := c.Theme
	if c.Date != "" {
		title += " - " + c.Date
	}
	titleFace := face(r.bold, 28)
	authorFace := face(r.regular, 32)

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(titleFace)
	titleW, titleH := measure.MeasureString(title)
	measure.SetFontFace(authorFace)
	authorW, _ := measure.MeasureString(c.Author)

	imgW, imgH := drawing.Bounds().Dx(), drawing.Bounds().Dy()
	rowW := avatarSize + authorGap + int(authorW)
	width := max(imgW, int(titleW), rowW) + 2*cardPad + 2*borderPad
	top := cardPad + int(titleH) + titleGap + avatarSize + authorGap + borderPad
	height := top + imgH + borderPad + cardPad

	dc := gg.NewContext(width, height)
	dc.SetColor(cardBackground)
	dc.Clear()

	dc.SetFontFace(titleFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(title, float64(width)/2, cardPad, 0.5, 1)

	rowY := cardPad + int(titleH) + titleGap
	rowX := (width - rowW) / 2
	dc.DrawImage(avatar, rowX, rowY)
	dc.SetFontFace(authorFace)
	dc.DrawStringAnchored(c.Author, float64(rowX+avatarSize+authorGap), float64(rowY+avatarSize/2), 0, 0.35)

	dx := (width - imgW) / 2
	dc.SetColor(DominantColor(drawing))
	dc.DrawRoundedRectangle(
		float64(dx-borderPad), float64(top-borderPad),
		float64(imgW+2*borderPad), float64(imgH+2*borderPad),
		borderRadius,
	)
	dc.Fill()
	dc.DrawImage(drawing, dx, top)

	return encode(dc)
}

// avatar returns a circular avatar, falling back to initials when the
// image is missing or unreadable.
func (r *Renderer) avatar(raw []byte, name string) image.Image {
	dc := gg.NewContext(avatarSize, avatarSize)
	dc.DrawCircle(avatarSize/2, avatarSize/2, avatarSize/2)
	dc.Clip()

	if len(raw) > 0 {
		if img, _, err := image.Decode(bytes.NewReader(raw)); err == nil {
			dst := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
			dc.DrawImage(dst, 0, 0)
			return dc.Image()
		}
	}

	dc.SetColor(avatarColor(name))
	dc.DrawRectangle(0, 0, avatarSize, avatarSize)
	dc.Fill()
	dc.SetFontFace(face(r.bold, 26))
	dc.SetColor(color.White)
	dc.DrawStringAnchored(Initials(name), avatarSize/2, avatarSize/2, 0.5, 0.35)
	return dc.Image()
}

// Initials returns up to two upper-case initials of name, or "?".
func Initials(name string) string {
	var out []rune
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.'
	}) {
		r, _ := utf8.DecodeRuneInString(word)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, unicode.ToUpper(r))
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func avatarColor(name string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	return avatarColors[h.Sum32()%uint32(len(avatarColors))]
}

// DominantColor samples img at 32x32 and returns the most frequent
// opaque colour. On a tie the colour that reached the count first wins.
func DominantColor(img image.Image) color.NRGBA {
	small := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	counts := make(map[color.NRGBA]int)
	best, bestN := fallbackBorder, 0
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := small.NRGBAAt(x, y)
			if c.A < 128 {
				continue
			}
			c.A = 255
			counts[c]++
			if counts[c] > bestN {
				best, bestN = c, counts[c]
			}
		}
	}
	return best
}

// fit scales img down so neither side exceeds limit.
func fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
