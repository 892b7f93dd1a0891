// Package threadkey issues the short human-readable keys that group all
// messages of one session into a single chat thread, and persists the
// session-to-key mapping.
package threadkey

import (
	"math/rand"
	"strings"
)

// Character sets. The ambiguous variants drop glyphs that are easy to
// misread over the phone or in a screenshot (0/O, 1/I/L).
const (
	upper            = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	upperUnambiguous = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lower            = "abcdefghijklmnopqrstuvwxyz"
	lowerUnambiguous = "abcdefghjkmnpqrstuvwxyz"
	digits           = "0123456789"
	digitsUnambiguous = "23456789"
)

// DefaultKeyLength is the generated portion's length when the config
// leaves it unset.
const DefaultKeyLength = 6

// GeneratorConfig controls the shape of generated keys.
type GeneratorConfig struct {
	Prefix string
	Suffix string

	// Length of the random portion, excluding prefix and suffix.
	Length int

	Uppercase bool
	Lowercase bool
	Digits    bool

	// ExcludeAmbiguous drops 0/O and 1/I/L style characters.
	ExcludeAmbiguous bool
}

// DefaultGeneratorConfig matches the keys the support team is used to
// reading: six unambiguous uppercase letters and digits.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Length:           DefaultKeyLength,
		Uppercase:        true,
		Digits:           true,
		ExcludeAmbiguous: true,
	}
}

func (c GeneratorConfig) charset() string {
	var b strings.Builder
	if c.Uppercase {
		if c.ExcludeAmbiguous {
			b.WriteString(upperUnambiguous)
		} else {
			b.WriteString(upper)
		}
	}
	if c.Lowercase {
		if c.ExcludeAmbiguous {
			b.WriteString(lowerUnambiguous)
		} else {
			b.WriteString(lower)
		}
	}
	if c.Digits {
		if c.ExcludeAmbiguous {
			b.WriteString(digitsUnambiguous)
		} else {
			b.WriteString(digits)
		}
	}
	if b.Len() == 0 {
		return upperUnambiguous + digitsUnambiguous
	}
	return b.String()
}

// Generate produces a fresh key: prefix + random portion + suffix.
// Keys are identifiers, not secrets, so math/rand is sufficient.
func (c GeneratorConfig) Generate() string {
	length := c.Length
	if length <= 0 {
		length = DefaultKeyLength
	}

	chars := c.charset()
	part := make([]byte, length)
	for i := range part {
		part[i] = chars[rand.Intn(len(chars))]
	}

	return strings.TrimSpace(c.Prefix) + string(part) + strings.TrimSpace(c.Suffix)
}
