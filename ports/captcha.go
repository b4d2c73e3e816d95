package ports

import "github.com/layer-3/gatekeeper/core"

// Code is a generated challenge: the text to render and the expected answer
type Code struct {
	Text   string
	Answer string
}

// CodeGenerator produces challenge texts and checks user answers
type CodeGenerator interface {
	Generate() (Code, error)
	Verify(answer, input string) bool
}

// CaptchaRenderer draws a code into an image and returns it as a data URI
type CaptchaRenderer interface {
	Render(kind core.CaptchaKind, text string) (string, error)
}
