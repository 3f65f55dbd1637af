package render

import (
	"regexp"
	"strconv"
	"strings"
)

// namedColors covers the CSS names sources actually emit. Anything
// unrecognized normalizes to black.
var namedColors = map[string]string{
	"black":   "000000",
	"white":   "FFFFFF",
	"red":     "FF0000",
	"green":   "008000",
	"blue":    "0000FF",
	"yellow":  "FFFF00",
	"orange":  "FFA500",
	"purple":  "800080",
	"gray":    "808080",
	"grey":    "808080",
	"silver":  "C0C0C0",
	"maroon":  "800000",
	"olive":   "808000",
	"lime":    "00FF00",
	"aqua":    "00FFFF",
	"cyan":    "00FFFF",
	"teal":    "008080",
	"navy":    "000080",
	"fuchsia": "FF00FF",
	"magenta": "FF00FF",
	"pink":    "FFC0CB",
	"brown":   "A52A2A",
	"gold":    "FFD700",
}

var rgbRe = regexp.MustCompile(`(?i)^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)

// NormalizeColor converts a CSS color value to a 6-digit uppercase
// hex string without the leading '#'. Named colors and rgb()/rgba()
// are translated; unrecognized values default to black.
func NormalizeColor(value string) string {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" {
		return "000000"
	}
	if hex, ok := namedColors[v]; ok {
		return hex
	}
	if h := strings.TrimPrefix(v, "#"); isHex(h) {
		switch len(h) {
		case 3:
			var sb strings.Builder
			for _, c := range h {
				sb.WriteRune(c)
				sb.WriteRune(c)
			}
			return strings.ToUpper(sb.String())
		case 6:
			return strings.ToUpper(h)
		case 8: // drop the alpha channel
			return strings.ToUpper(h[:6])
		}
	}
	if m := rgbRe.FindStringSubmatch(v); m != nil {
		var hex [3]string
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(m[i+1])
			if err != nil || n > 255 {
				return "000000"
			}
			hex[i] = strings.ToUpper(strconv.FormatInt(int64(n), 16))
			if len(hex[i]) == 1 {
				hex[i] = "0" + hex[i]
			}
		}
		return hex[0] + hex[1] + hex[2]
	}
	return "000000"
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
