package captcha

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const (
	GeneratorRandom = "random"
	GeneratorMath   = "math"

	// Look-alike glyphs (0/O, 1/l/I) are left out
	AlphanumericAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"
	NumericAlphabet      = "0123456789"
)

// NewCodeGenerator resolves a configured generator type
func NewCodeGenerator(kind string, length int) (ports.CodeGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", GeneratorRandom:
		return NewRandomGenerator(AlphanumericAlphabet, length)
	case GeneratorMath:
		return NewMathGenerator(length)
	default:
		return nil, fmt.Errorf("unknown code generator %q: %w", kind, core.ErrInvalidConfiguration)
	}
}

// RandomGenerator draws codes uniformly from an alphabet
type RandomGenerator struct {
	alphabet string
	length   int
}

func NewRandomGenerator(alphabet string, length int) (*RandomGenerator, error) {
	if length <= 0 || alphabet == "" {
		return nil, fmt.Errorf("code length must be positive: %w", core.ErrInvalidConfiguration)
	}
	return &RandomGenerator{alphabet: alphabet, length: length}, nil
}

func (g *RandomGenerator) Generate() (ports.Code, error) {
	var sb strings.Builder
	sb.Grow(g.length)

	limit := big.NewInt(int64(len(g.alphabet)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return ports.Code{}, fmt.Errorf("failed to generate code: %w", err)
		}
		sb.WriteByte(g.alphabet[n.Int64()])
	}

	code := sb.String()
	return ports.Code{Text: code, Answer: code}, nil
}

// Verify compares case-insensitively in constant time
func (g *RandomGenerator) Verify(answer, input string) bool {
	a := []byte(strings.ToLower(answer))
	b := []byte(strings.ToLower(strings.TrimSpace(input)))
	return len(a) > 0 && subtle.ConstantTimeCompare(a, b) == 1
}

// MathGenerator renders an arithmetic question such as "12+7=" whose answer
// is stored instead of the text
type MathGenerator struct {
	digits int
}

func NewMathGenerator(digits int) (*MathGenerator, error) {
	if digits <= 0 || digits > 4 {
		return nil, fmt.Errorf("math code length must be between 1 and 4: %w", core.ErrInvalidConfiguration)
	}
	return &MathGenerator{digits: digits}, nil
}

func (g *MathGenerator) Generate() (ports.Code, error) {
	limit := int64(1)
	for i := 0; i < g.digits; i++ {
		limit *= 10
	}

	a, err := randInt(limit)
	if err != nil {
		return ports.Code{}, err
	}
	b, err := randInt(limit)
	if err != nil {
		return ports.Code{}, err
	}
	op, err := randInt(3)
	if err != nil {
		return ports.Code{}, err
	}

	var symbol string
	var result int64
	switch op {
	case 0:
		symbol, result = "+", a+b
	case 1:
		if a < b {
			a, b = b, a
		}
		symbol, result = "-", a-b
	default:
		symbol, result = "*", a*b
	}

	return ports.Code{
		Text:   fmt.Sprintf("%d%s%d=", a, symbol, b),
		Answer: strconv.FormatInt(result, 10),
	}, nil
}

func (g *MathGenerator) Verify(answer, input string) bool {
	input = strings.TrimSpace(input)
	return answer != "" && subtle.ConstantTimeCompare([]byte(answer), []byte(input)) == 1
}

func randInt(limit int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(limit))
	if err != nil {
		return 0, fmt.Errorf("failed to generate code: %w", err)
	}
	return n.Int64(), nil
}
