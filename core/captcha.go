package core

import (
	"fmt"
	"strings"
)

// CaptchaKind selects how a captcha image is rendered
type CaptchaKind int

const (
	CaptchaCircle CaptchaKind = iota + 1
	CaptchaGif
	CaptchaLine
	CaptchaShear
)

var captchaKindNames = map[CaptchaKind]string{
	CaptchaCircle: "circle",
	CaptchaGif:    "gif",
	CaptchaLine:   "line",
	CaptchaShear:  "shear",
}

func (k CaptchaKind) String() string {
	if name, ok := captchaKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CaptchaKind(%d)", int(k))
}

// Valid reports whether k is one of the recognized kinds
func (k CaptchaKind) Valid() bool {
	_, ok := captchaKindNames[k]
	return ok
}

// ParseCaptchaKind resolves a configured kind name, ignoring case
func ParseCaptchaKind(name string) (CaptchaKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for kind, kindName := range captchaKindNames {
		if kindName == normalized {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("invalid captcha type %q: %w", name, ErrInvalidConfiguration)
}
