package heading

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// declarations splits an inline style attribute into ordered property/value
// pairs. Properties are lowercased; values are trimmed and lowercased with
// any !important suffix removed. Malformed entries are skipped.
func declarations(style string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(val))
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		if prop == "" || val == "" {
			continue
		}
		out = append(out, [2]string{prop, val})
	}
	return out
}

// fontSizePt returns the first font-size declaration expressed as
// <number>pt or <number>px, converted to points.
func fontSizePt(style string) (float64, bool) {
	for _, d := range declarations(style) {
		if d[0] != "font-size" {
			continue
		}
		if pt, ok := parseLength(d[1]); ok {
			return pt, true
		}
	}
	return 0, false
}

func parseLength(v string) (float64, bool) {
	var unit string
	switch {
	case strings.HasSuffix(v, "pt"):
		unit = "pt"
	case strings.HasSuffix(v, "px"):
		unit = "px"
	default:
		return 0, false
	}
	num := strings.TrimSpace(strings.TrimSuffix(v, unit))
	if !isDecimal(num) {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if unit == "px" {
		f *= 0.75
	}
	return f, true
}

// isDecimal accepts digits with an optional fraction, e.g. "12" or "10.5".
func isDecimal(s string) bool {
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") {
		return false
	}
	for _, part := range []string{whole, frac} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return false
			}
		}
	}
	return true
}

// WeightFromStyle reports the font weight an inline style declares.
// set is false when the style says nothing about weight.
func WeightFromStyle(style string) (bold, set bool) {
	for _, d := range declarations(style) {
		switch d[0] {
		case "font-weight":
			bold, set = isBoldWeight(d[1]), true
		case "font":
			for _, tok := range strings.Fields(d[1]) {
				if tok == "bold" || tok == "bolder" {
					bold, set = true, true
				}
			}
		}
	}
	return bold, set
}

func isBoldWeight(v string) bool {
	switch v {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n >= 700
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
