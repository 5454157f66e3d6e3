package render

import (
	"fmt"
	"strings"
)

var markdownV2Special = []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}

// EscapeMarkdown escapes the characters Telegram reserves in MarkdownV2.
func EscapeMarkdown(text string) string {
	escaped := text
	for _, char := range markdownV2Special {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

// TelegramMarkdown formats blocks as a Telegram MarkdownV2 message.
func TelegramMarkdown(blocks []Block) string {
	lines := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch block.Kind {
		case KindHeading:
			// Telegram has no headings; show them bold.
			lines = append(lines, "*"+EscapeMarkdown(block.PlainText())+"*")
		case KindNumbered:
			lines = append(lines, fmt.Sprintf("%d\\. %s", block.Number, inlineMarkdown(block.Inlines)))
		case KindBullet:
			lines = append(lines, "• "+inlineMarkdown(block.Inlines))
		case KindRule:
			lines = append(lines, "\\-\\-\\-")
		default:
			lines = append(lines, inlineMarkdown(block.Inlines))
		}
	}
	return strings.Join(lines, "\n")
}

func inlineMarkdown(inlines []Inline) string {
	var b strings.Builder
	for _, in := range inlines {
		text := EscapeMarkdown(in.Text)
		switch {
		case in.Strong:
			b.WriteString("*" + text + "*")
		case in.Emphasis:
			b.WriteString("_" + text + "_")
		default:
			b.WriteString(text)
		}
	}
	return b.String()
}
