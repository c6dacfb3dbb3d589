package generate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/techspec/internal/render"
	"github.com/dgallion1/techspec/internal/source"
)

// Brief is the analyst-supplied material a specification is drafted from.
type Brief struct {
	Title             string
	PreparedBy        string
	CodeSnippets      []string
	ErrorDescriptions []string
	ChatsEmails       []string
	CustomCommand     []string
}

// BuildPrompt assembles the drafting prompt. Attachment text is appended
// in order until maxTokens is reached; the attachment that crosses the
// limit is cut short and later ones are dropped. maxTokens <= 0 means no
// limit.
func BuildPrompt(b Brief, attachments []source.Attachment, maxTokens int) string {
	var sb strings.Builder
	sb.WriteString("Here is the description for the documentation\n")
	sb.WriteString(render.DocumentTitle + ":\n")
	fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	fmt.Fprintf(&sb, "Prepared By: %s\n\n", b.PreparedBy)
	writeList(&sb, "Code Snippets", b.CodeSnippets)
	writeList(&sb, "Error Descriptions", b.ErrorDescriptions)
	writeList(&sb, "Chats / Emails", b.ChatsEmails)
	writeList(&sb, "Custom Command", b.CustomCommand)

	trailer := "\nGenerate SAP Technical Documentation in the following format:\n" +
		fmt.Sprintf("Sections: %s (table).\n", strings.Join(render.SectionNames(), ", "))

	budget := maxTokens - EstimateTokens(sb.String()) - EstimateTokens(trailer)
	for _, att := range attachments {
		text := strings.TrimSpace(att.Text)
		if text == "" {
			continue
		}
		if maxTokens > 0 {
			if budget <= 0 {
				break
			}
			text = trimToTokens(text, budget)
			budget -= EstimateTokens(text)
		}
		fmt.Fprintf(&sb, "\nAttachment %s:\n%s\n", att.Name, text)
	}

	sb.WriteString(trailer)
	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	sb.WriteString(label + ":")
	if len(items) == 0 {
		sb.WriteString(" none\n")
		return
	}
	sb.WriteString("\n")
	for _, item := range items {
		sb.WriteString("- " + strings.TrimSpace(item) + "\n")
	}
}

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// trimToTokens keeps leading words of text until the estimate reaches
// limit.
func trimToTokens(text string, limit int) string {
	if EstimateTokens(text) <= limit {
		return text
	}
	words := strings.Fields(text)
	keep := int(float64(limit) / 1.33)
	if keep < 1 {
		keep = 1
	}
	if keep > len(words) {
		keep = len(words)
	}
	return strings.Join(words[:keep], " ") + " ..."
}
