package ai

import "strings"

// DefaultSystemPrompt is the assistant persona together with its formatting rules.
const DefaultSystemPrompt = `You are a knowledgeable and friendly real estate assistant helping users find homes.
You can discuss:
- Property search
- Neighborhood details
- Market trends
- Mortgage calculations
- General buying/selling guidance

Formatting rules (VERY IMPORTANT):
- Always answer in clean Markdown.
- When summarizing or explaining multiple things, use numbered (1., 2., 3.) or bullet (•) lists.
- Use short headings like **1. Location**, **2. Budget**, etc.
- Do NOT use code blocks or backticks unless the user asks for code.

Always be clear, specific, and easy to read.`

// ContextProvider supplies extra domain context appended to the system prompt.
type ContextProvider func() string

// PromptBuilder assembles the system instruction sent ahead of every conversation window.
type PromptBuilder struct {
	base    string
	context ContextProvider
}

// NewPromptBuilder returns a builder around base, falling back to DefaultSystemPrompt.
func NewPromptBuilder(base string, context ContextProvider) *PromptBuilder {
	if strings.TrimSpace(base) == "" {
		base = DefaultSystemPrompt
	}
	return &PromptBuilder{base: base, context: context}
}

// SystemPrompt returns the base prompt followed by any provided context.
func (b *PromptBuilder) SystemPrompt() string {
	if b.context == nil {
		return b.base
	}

	extra := strings.TrimSpace(b.context())
	if extra == "" {
		return b.base
	}
	return b.base + "\n\n" + extra
}
