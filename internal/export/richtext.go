package export

import (
	"html"
	"html/template"
	"strings"
)

// TextToHTML converts the plain text admins type into report markup. Blank
// lines separate paragraphs; lines starting with "- " or "・" become list items.
func TextToHTML(text string) template.HTML {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}

	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}
		if allListItems(lines) {
			b.WriteString("<ul>")
			for _, line := range lines {
				b.WriteString("<li>")
				b.WriteString(html.EscapeString(listItemText(line)))
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
			continue
		}
		b.WriteString("<p>")
		for i, line := range lines {
			if i > 0 {
				b.WriteString("<br>")
			}
			b.WriteString(html.EscapeString(strings.TrimSpace(line)))
		}
		b.WriteString("</p>")
	}
	return template.HTML(b.String())
}

func allListItems(lines []string) bool {
	for _, line := range lines {
		if listItemText(line) == strings.TrimSpace(line) {
			return false
		}
	}
	return true
}

func listItemText(line string) string {
	line = strings.TrimSpace(line)
	for _, marker := range []string{"- ", "* ", "・"} {
		if rest, ok := strings.CutPrefix(line, marker); ok {
			return strings.TrimSpace(rest)
		}
	}
	return line
}
