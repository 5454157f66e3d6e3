package render

import (
	"fmt"
	"html"
	"strings"
)

// HTML formats blocks as HTML fragments. Text is always escaped, so markup in
// user or model text is shown literally. Headings start at h2 because the
// page owns h1.
func HTML(blocks []Block) string {
	var b strings.Builder

	list := KindParagraph
	closeList := func() {
		switch list {
		case KindNumbered:
			b.WriteString("</ol>\n")
		case KindBullet:
			b.WriteString("</ul>\n")
		}
		list = KindParagraph
	}

	for _, block := range blocks {
		if block.Kind != list {
			closeList()
		}

		switch block.Kind {
		case KindHeading:
			level := block.Level + 1
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", level, inlineHTML(block.Inlines), level)
		case KindNumbered:
			if list != KindNumbered {
				fmt.Fprintf(&b, "<ol start=\"%d\">\n", block.Number)
				list = KindNumbered
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", inlineHTML(block.Inlines))
		case KindBullet:
			if list != KindBullet {
				b.WriteString("<ul>\n")
				list = KindBullet
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", inlineHTML(block.Inlines))
		case KindRule:
			b.WriteString("<hr>\n")
		default:
			fmt.Fprintf(&b, "<p>%s</p>\n", inlineHTML(block.Inlines))
		}
	}
	closeList()

	return b.String()
}

func inlineHTML(inlines []Inline) string {
	var b strings.Builder
	for _, in := range inlines {
		text := html.EscapeString(in.Text)
		switch {
		case in.Strong:
			fmt.Fprintf(&b, "<strong>%s</strong>", text)
		case in.Emphasis:
			fmt.Fprintf(&b, "<em>%s</em>", text)
		default:
			b.WriteString(text)
		}
	}
	return b.String()
}
