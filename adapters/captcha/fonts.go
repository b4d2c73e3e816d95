package captcha

import (
	"fmt"
	"strings"

	"github.com/layer-3/gatekeeper/core"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var fontFiles = map[string][]byte{
	"goregular":  goregular.TTF,
	"gobold":     gobold.TTF,
	"goitalic":   goitalic.TTF,
	"gomono":     gomono.TTF,
	"gomonobold": gomonobold.TTF,
}

// DefaultFont is used when no font is configured
const DefaultFont = "gobold"

func loadFont(name string) (*opentype.Font, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultFont
	}
	data, ok := fontFiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown captcha font %q: %w", name, core.ErrInvalidConfiguration)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %q: %w", name, err)
	}
	return f, nil
}

// HasFont reports whether name is a bundled font
func HasFont(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return true
	}
	_, ok := fontFiles[name]
	return ok
}
