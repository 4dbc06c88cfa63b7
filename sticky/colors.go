package sticky

import (
	"fmt"
	"strconv"
	"strings"
)

var namedColors = map[string]int{
	"red":    0xe74c3c,
	"orange": 0xe67e22,
	"yellow": 0xf1c40f,
	"green":  0x2ecc71,
	"blue":   0x3498db,
	"purple": 0x9b59b6,
	"pink":   0xff69b4,
	"white":  0xffffff,
	"black":  0x000000,
	"gray":   0x95a5a6,
	"teal":   0x1abc9c,
	"gold":   0xf39c12,
}

// ParseColor accepts a hex string like "#5865F2" or a named color. An
// unknown value is a user error, not a default.
func ParseColor(input string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return 0, fmt.Errorf("empty color")
	}
	if c, ok := namedColors[normalized]; ok {
		return c, nil
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(normalized, "#"), "0x")
	if len(hex) != 6 {
		return 0, fmt.Errorf("unknown color %q", input)
	}
	c, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown color %q", input)
	}
	return int(c), nil
}
