package captcha

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/gif"
	_ "image/png"
	"strings"
	"testing"

	"github.com/layer-3/gatekeeper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDataURI(t *testing.T, uri, mime string) []byte {
	t.Helper()
	prefix := "data:" + mime + ";base64,"
	require.True(t, strings.HasPrefix(uri, prefix), "unexpected prefix: %.40s", uri)
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	return data
}

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(RendererConfig{
		Width:          120,
		Height:         40,
		InterfereCount: 3,
		TextAlpha:      0.8,
		FontName:       "gobold",
		FontSize:       28,
	})
	require.NoError(t, err)
	return r
}

func TestRenderStillKinds(t *testing.T) {
	r := testRenderer(t)

	for _, kind := range []core.CaptchaKind{core.CaptchaCircle, core.CaptchaLine, core.CaptchaShear} {
		t.Run(kind.String(), func(t *testing.T) {
			uri, err := r.Render(kind, "aB3k")
			require.NoError(t, err)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(decodeDataURI(t, uri, "image/png")))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
			assert.Equal(t, 120, cfg.Width)
			assert.Equal(t, 40, cfg.Height)
		})
	}
}

func TestRenderGif(t *testing.T) {
	r := testRenderer(t)

	uri, err := r.Render(core.CaptchaGif, "x7Kp")
	require.NoError(t, err)

	anim, err := gif.DecodeAll(bytes.NewReader(decodeDataURI(t, uri, "image/gif")))
	require.NoError(t, err)
	assert.Len(t, anim.Image, gifFrames)
	assert.Equal(t, 120, anim.Config.Width)
}

func TestRenderRejectsUnknownKind(t *testing.T) {
	_, err := testRenderer(t).Render(core.CaptchaKind(99), "abcd")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestNewRendererValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  RendererConfig
	}{
		{"zero width", RendererConfig{Width: 0, Height: 40, TextAlpha: 1}},
		{"alpha too high", RendererConfig{Width: 100, Height: 40, TextAlpha: 1.5}},
		{"alpha zero", RendererConfig{Width: 100, Height: 40}},
		{"unknown font", RendererConfig{Width: 100, Height: 40, TextAlpha: 1, FontName: "comic sans"}},
		{"negative interfere", RendererConfig{Width: 100, Height: 40, TextAlpha: 1, InterfereCount: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRenderer(tt.cfg)
			assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
		})
	}
}
