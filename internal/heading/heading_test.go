package heading

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/text/language"
)

// firstElement parses src and returns the first element with the given tag.
func firstElement(t *testing.T, src, tag string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if found == nil {
		t.Fatalf("no <%s> in %q", tag, src)
	}
	return found
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		html string
		tag  string
		want Level
	}{
		{"h1 tag", `<h1>Title</h1>`, "h1", 1},
		{"h4 ignores style", `<h4 style="font-size:40px">Small</h4>`, "h4", 4},
		{"h5 tag", `<h5>x</h5>`, "h5", 5},
		{"h6 is not a heading level", `<h6>x</h6>`, "h6", NotHeading},
		{"px converted to pt", `<p style="font-size:32px">Big</p>`, "p", 1},
		{"exactly 24pt", `<p style="font-size: 24pt">Big</p>`, "p", 1},
		{"span size 18pt", `<p><span style="font-size:18pt">Medium</span></p>`, "p", 2},
		{"24px is 18pt", `<p><span style="font-size:24px">Medium</span></p>`, "p", 2},
		{"17.9pt without bold", `<p style="font-size:17.9pt">Body</p>`, "p", NotHeading},
		{"16pt bold", `<p style="font-size:16pt"><strong>Section</strong></p>`, "p", 3},
		{"16pt span weight", `<p><span style="font-size:16pt;font-weight:700">Section</span></p>`, "p", 3},
		{"16pt not bold", `<p style="font-size:16pt">Section</p>`, "p", NotHeading},
		{"13pt bold", `<p style="font-size:13pt"><b>Small bold</b></p>`, "p", NotHeading},
		{"size wins over all caps", `<p style="font-size:12pt"><b>ALL CAPS TITLE</b></p>`, "p", NotHeading},
		{"own style before span", `<p style="font-size:12pt"><span style="font-size:30pt">x</span></p>`, "p", NotHeading},
		{"unicode all caps bold", `<p><strong>BÀI TẬP CÂU BỊ ĐỘNG</strong></p>`, "p", 3},
		{"three letters too short", `<p><b>ABC</b></p>`, "p", NotHeading},
		{"four letters", `<p><b>ABCD</b></p>`, "p", 3},
		{"mixed case bold", `<p><b>Not Caps</b></p>`, "p", NotHeading},
		{"all caps not bold", `<p>ALL CAPS</p>`, "p", NotHeading},
		{"bold via font shorthand", `<p style="font: bold 1em serif">OVERVIEW</p>`, "p", 3},
		{"bold via weight keyword", `<p><span style="font-weight: bold">OVERVIEW</span></p>`, "p", 3},
		{"normal weight b wrapper", `<p><b style="font-weight:normal">OVERVIEW</b></p>`, "p", NotHeading},
		{"malformed size", `<p style="font-size:abcpt"><b>Title</b></p>`, "p", NotHeading},
		{"infinite size is no signal", `<p style="font-size: infpt"><b>SHORT TITLE HERE</b></p>`, "p", 3},
		{"nan size is no signal", `<p style="font-size: NaNpx"><b>SHORT TITLE HERE</b></p>`, "p", 3},
		{"exponent size is no signal", `<p style="font-size: 1e2pt">Title</p>`, "p", NotHeading},
		{"em units ignored", `<p style="font-size:2em">Title</p>`, "p", NotHeading},
		{"garbage style", `<p style=";;:font-size;;">Text</p>`, "p", NotHeading},
		{"div is not paragraph-like", `<div style="font-size:30pt">Big</div>`, "div", NotHeading},
		{"uppercase property", `<p style="FONT-SIZE:20PT">Upper</p>`, "p", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := firstElement(t, tt.html, tt.tag)
			if got := Classify(n); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestClassifyLongAllCaps(t *testing.T) {
	text := strings.Repeat("A", 99)
	n := firstElement(t, "<p><b>"+text+"</b></p>", "p")
	if got := Classify(n); got != 3 {
		t.Errorf("99 runes: expected 3, got %d", got)
	}

	text = strings.Repeat("A", 100)
	n = firstElement(t, "<p><b>"+text+"</b></p>", "p")
	if got := Classify(n); got != NotHeading {
		t.Errorf("100 runes: expected NotHeading, got %d", got)
	}
}

func TestClassifyNilAndText(t *testing.T) {
	if got := Classify(nil); got != NotHeading {
		t.Errorf("nil: expected NotHeading, got %d", got)
	}
	if got := Classify(&html.Node{Type: html.TextNode, Data: "TEXT"}); got != NotHeading {
		t.Errorf("text node: expected NotHeading, got %d", got)
	}
}

func TestHint(t *testing.T) {
	n := firstElement(t, `<p style="color:red"><span style="font-size:12px">  HELLO   <b>WORLD</b> </span></p>`, "p")
	hint := New(language.Und).Hint(n)
	if !hint.HasFontSize || hint.FontSizePt != 9 {
		t.Errorf("expected 9pt, got %v (set=%v)", hint.FontSizePt, hint.HasFontSize)
	}
	if !hint.HasBold {
		t.Errorf("expected bold")
	}
	if hint.Text != "HELLO WORLD" {
		t.Errorf("expected collapsed text %q, got %q", "HELLO WORLD", hint.Text)
	}
	if !hint.IsAllCaps {
		t.Errorf("expected all caps")
	}
}

func TestClassifierLanguage(t *testing.T) {
	c := Parse("tr")
	if c.Language() != language.Turkish {
		t.Fatalf("expected tr, got %v", c.Language())
	}
	n := firstElement(t, `<p><b>İSTANBUL ŞEHRİ</b></p>`, "p")
	if got := c.Classify(n); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}

	if got := Parse("not a tag!!").Language(); got != language.Und {
		t.Errorf("expected fallback to und, got %v", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	n := firstElement(t, `<p><span style="font-size:20pt">Title</span></p>`, "p")
	first := Classify(n)
	for range 10 {
		if got := Classify(n); got != first {
			t.Fatalf("expected stable result %d, got %d", first, got)
		}
	}
}
