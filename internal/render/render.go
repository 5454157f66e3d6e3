// Package render turns the markdown subset used in assistant replies into a
// tree of styled fragments and formats that tree for HTML and Telegram.
//
// The supported subset is **bold**, *italic*, #/##/### headings, "N. "
// numbered items, "• " bullets and standalone --- rules. Anything else is a
// plain paragraph.
package render

import (
	"regexp"
	"strconv"
	"strings"
)

type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindHeading   BlockKind = "heading"
	KindNumbered  BlockKind = "numbered"
	KindBullet    BlockKind = "bullet"
	KindRule      BlockKind = "rule"
)

// Inline is a run of text with its emphasis flags. Text is kept verbatim.
type Inline struct {
	Text     string `json:"text"`
	Strong   bool   `json:"strong,omitempty"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Block is one line-level fragment. Level is set for headings, Number for
// numbered items.
type Block struct {
	Kind    BlockKind `json:"kind"`
	Level   int       `json:"level,omitempty"`
	Number  int       `json:"number,omitempty"`
	Inlines []Inline  `json:"inlines,omitempty"`
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^•\s+(.*)$`)
	ruleRe     = regexp.MustCompile(`^-{3,}$`)
	inlineRe   = regexp.MustCompile(`\*\*(.+?)\*\*|\*(.+?)\*`)
)

// Parse splits text into blocks, one per non-blank line.
func Parse(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, parseLine(trimmed))
	}
	return blocks
}

func parseLine(line string) Block {
	if ruleRe.MatchString(line) {
		return Block{Kind: KindRule}
	}
	if m := headingRe.FindStringSubmatch(line); m != nil {
		return Block{Kind: KindHeading, Level: len(m[1]), Inlines: ParseInline(m[2])}
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return Block{Kind: KindNumbered, Number: n, Inlines: ParseInline(m[2])}
		}
	}
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return Block{Kind: KindBullet, Inlines: ParseInline(m[1])}
	}
	return Block{Kind: KindParagraph, Inlines: ParseInline(line)}
}

// ParseInline splits a line into literal, strong and emphasised runs.
// Unmatched markers stay in the literal text. A strong run missing its closing
// pair is read as emphasis, so "**bold*" yields emphasised "*bold".
func ParseInline(text string) []Inline {
	var out []Inline
	last := 0
	for _, m := range inlineRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			out = append(out, Inline{Text: text[last:m[0]]})
		}
		switch {
		case m[2] >= 0:
			out = append(out, Inline{Text: text[m[2]:m[3]], Strong: true})
		case m[4] >= 0:
			out = append(out, Inline{Text: text[m[4]:m[5]], Emphasis: true})
		}
		last = m[1]
	}
	if last < len(text) {
		out = append(out, Inline{Text: text[last:]})
	}
	return out
}

// PlainText drops all styling and returns the inline text of a block.
func (b Block) PlainText() string {
	var sb strings.Builder
	for _, in := range b.Inlines {
		sb.WriteString(in.Text)
	}
	return sb.String()
}

// Plain splits text into paragraph blocks without interpreting any markup.
// User messages are shown this way.
func Plain(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, Block{Kind: KindParagraph, Inlines: []Inline{{Text: trimmed}}})
	}
	return blocks
}
