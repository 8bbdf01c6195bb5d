package annotate

import (
	"strings"

	"golang.org/x/image/font"
)

// Wrap breaks text into lines no wider than maxWidth pixels when drawn
// with face.
//
// Text is split into paragraphs on line breaks. Words are accumulated
// greedily, joined by single spaces; a word that does not fit starts a new
// line. A word wider than maxWidth is placed alone on its own line without
// being split. An empty paragraph inside non-empty text yields an empty
// line; text that is empty or only whitespace yields no lines at all.
func Wrap(face font.Face, text string, maxWidth int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxWidth < 1 {
		maxWidth = 1
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(face, paragraph, maxWidth)...)
	}
	return lines
}

func wrapParagraph(face font.Face, paragraph string, maxWidth int) []string {
	words := strings.Fields(paragraph)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	buffer := ""
	for _, word := range words {
		if buffer == "" {
			buffer = word
			continue
		}
		candidate := buffer + " " + word
		if font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, buffer)
			buffer = word
			continue
		}
		buffer = candidate
	}
	return append(lines, buffer)
}
