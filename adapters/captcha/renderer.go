package captcha

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"math"
	"math/rand/v2"

	"github.com/layer-3/gatekeeper/core"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	gifFrames = 10
	gifDelay  = 10 // hundredths of a second
)

// RendererConfig sizes the image and styles the text
type RendererConfig struct {
	Width          int
	Height         int
	InterfereCount int
	TextAlpha      float64 // 0 < alpha <= 1
	FontName       string
	FontSize       float64 // Points at 72 DPI; 0 derives it from the height
}

// Renderer draws codes as circle, gif, line or shear captchas
type Renderer struct {
	cfg  RendererConfig
	font *opentype.Font
}

// NewRenderer validates the configuration and loads the font
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("captcha size %dx%d: %w", cfg.Width, cfg.Height, core.ErrInvalidConfiguration)
	}
	if cfg.InterfereCount < 0 {
		return nil, fmt.Errorf("negative interfere count: %w", core.ErrInvalidConfiguration)
	}
	if cfg.TextAlpha <= 0 || cfg.TextAlpha > 1 {
		return nil, fmt.Errorf("text alpha %v out of range: %w", cfg.TextAlpha, core.ErrInvalidConfiguration)
	}
	if cfg.FontSize < 0 {
		return nil, fmt.Errorf("negative font size: %w", core.ErrInvalidConfiguration)
	}
	if cfg.FontSize == 0 {
		cfg.FontSize = float64(cfg.Height) * 0.75
	}

	f, err := loadFont(cfg.FontName)
	if err != nil {
		return nil, err
	}

	return &Renderer{cfg: cfg, font: f}, nil
}

// Render draws text and returns the image as a base64 data URI
func (r *Renderer) Render(kind core.CaptchaKind, text string) (string, error) {
	// Faces keep glyph caches and are not safe for concurrent use
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    r.cfg.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return "", fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	var buf bytes.Buffer
	var mime string

	switch kind {
	case core.CaptchaCircle:
		img := r.canvas()
		for i := 0; i < r.cfg.InterfereCount; i++ {
			r.ring(img, randomColor(120, 220, 0.8))
		}
		r.text(img, face, text, r.cfg.TextAlpha)
		err, mime = png.Encode(&buf, img), "image/png"

	case core.CaptchaLine:
		img := r.canvas()
		for i := 0; i < r.cfg.InterfereCount; i++ {
			r.line(img, randomColor(100, 200, 1), 1+rand.Float32())
		}
		r.text(img, face, text, r.cfg.TextAlpha)
		err, mime = png.Encode(&buf, img), "image/png"

	case core.CaptchaShear:
		img := r.canvas()
		r.text(img, face, text, r.cfg.TextAlpha)
		img = r.shear(img)
		for i := 0; i < r.cfg.InterfereCount; i++ {
			r.line(img, randomColor(60, 160, 1), 1.5)
		}
		err, mime = png.Encode(&buf, img), "image/png"

	case core.CaptchaGif:
		err, mime = gif.EncodeAll(&buf, r.animation(face, text)), "image/gif"

	default:
		return "", fmt.Errorf("captcha kind %v: %w", kind, core.ErrInvalidConfiguration)
	}
	if err != nil {
		return "", fmt.Errorf("encode captcha: %w", err)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (r *Renderer) canvas() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.cfg.Width, r.cfg.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 245, G: 245, B: 245, A: 255}), image.Point{}, draw.Src)
	return img
}

// text spreads the glyphs evenly across the width with a small vertical jitter
func (r *Renderer) text(img *image.RGBA, face font.Face, text string, alpha float64) {
	r.textWith(img, face, text, func(int) color.Color { return randomColor(20, 110, alpha) })
}

func (r *Renderer) textWith(img *image.RGBA, face font.Face, text string, colorOf func(i int) color.Color) {
	runes := []rune(text)
	if len(runes) == 0 {
		return
	}

	metrics := face.Metrics()
	cell := r.cfg.Width / len(runes)
	baseline := (r.cfg.Height + metrics.Ascent.Ceil() - metrics.Descent.Ceil()) / 2
	jitter := max(1, r.cfg.Height/8)

	for i, ch := range runes {
		advance, _ := face.GlyphAdvance(ch)
		x := i*cell + (cell-advance.Ceil())/2
		y := baseline + rand.IntN(2*jitter+1) - jitter

		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(colorOf(i)),
			Face: face,
			Dot:  fixed.P(x, y),
		}
		d.DrawString(string(ch))
	}
}

// line draws a stroke between two random points on opposite edges
func (r *Renderer) line(img *image.RGBA, c color.Color, width float32) {
	w, h := float32(r.cfg.Width), float32(r.cfg.Height)
	x0, y0 := rand.Float32()*w*0.2, rand.Float32()*h
	x1, y1 := w-rand.Float32()*w*0.2, rand.Float32()*h

	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	z := vector.NewRasterizer(r.cfg.Width, r.cfg.Height)
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

// ring draws a circle outline; the inner path winds the other way and
// cancels the fill
func (r *Renderer) ring(img *image.RGBA, c color.Color) {
	const segments = 32

	cx := rand.Float64() * float64(r.cfg.Width)
	cy := rand.Float64() * float64(r.cfg.Height)
	outer := float64(r.cfg.Height)/10 + rand.Float64()*float64(r.cfg.Height)/4
	inner := outer - 1.5

	z := vector.NewRasterizer(r.cfg.Width, r.cfg.Height)
	for i := 0; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		x, y := float32(cx+outer*math.Cos(a)), float32(cy+outer*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	for i := 0; i <= segments; i++ {
		a := -2 * math.Pi * float64(i) / segments
		x, y := float32(cx+inner*math.Cos(a)), float32(cy+inner*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

// shear slants the image horizontally around its vertical center
func (r *Renderer) shear(src *image.RGBA) *image.RGBA {
	dst := r.canvas()
	k := 0.15 + rand.Float64()*0.2
	if rand.IntN(2) == 0 {
		k = -k
	}
	m := f64.Aff3{
		1, k, -k * float64(r.cfg.Height) / 2,
		0, 1, 0,
	}
	draw.BiLinear.Transform(dst, m, src, src.Bounds(), draw.Over, nil)
	return dst
}

// animation fades each glyph in and out at its own phase
func (r *Renderer) animation(face font.Face, text string) *gif.GIF {
	anim := &gif.GIF{}

	n := len([]rune(text))
	colors := make([]color.RGBA, n)
	for i := range colors {
		colors[i] = randomColor(20, 110, 1)
	}

	for frame := 0; frame < gifFrames; frame++ {
		img := r.canvas()
		for i := 0; i < r.cfg.InterfereCount; i++ {
			r.ring(img, randomColor(150, 230, 0.6))
		}
		r.textWith(img, face, text, func(i int) color.Color {
			phase := float64((frame+i*gifFrames/max(1, n))%gifFrames) / gifFrames
			alpha := r.cfg.TextAlpha * (0.45 + 0.55*math.Abs(math.Cos(math.Pi*phase)))
			return premultiply(colors[i], alpha)
		})

		paletted := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, img.Bounds(), img, image.Point{})

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, gifDelay)
	}
	return anim
}

// randomColor returns a premultiplied color with channels in [lo, hi)
func randomColor(lo, hi int, alpha float64) color.RGBA {
	c := color.RGBA{
		R: uint8(lo + rand.IntN(hi-lo)),
		G: uint8(lo + rand.IntN(hi-lo)),
		B: uint8(lo + rand.IntN(hi-lo)),
		A: 255,
	}
	return premultiply(c, alpha)
}

func premultiply(c color.RGBA, alpha float64) color.RGBA {
	a := math.Max(0, math.Min(1, alpha))
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(255 * a),
	}
}
