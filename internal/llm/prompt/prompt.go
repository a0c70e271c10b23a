// Package prompt renders the Llama-2 chat prompt sent to the inference backend
// and estimates its size in tokens.
package prompt

import "strings"

// DefaultSystemPrompt is the instruction placed at the top of every prompt.
const DefaultSystemPrompt = "You are a helpful Jenkins expert. Answer questions about Jenkins clearly and concisely."

// Template renders prompts in the [INST] <<SYS>> layout the fine-tuned model
// was trained on.
type Template struct {
	system string
}

// NewTemplate returns a template using system as the system prompt.
// An empty system prompt selects DefaultSystemPrompt.
func NewTemplate(system string) *Template {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	return &Template{system: system}
}

// System returns the configured system prompt.
func (t *Template) System() string {
	return t.system
}

// Render builds the full prompt. Empty persona and history leave their
// lines blank rather than removing them.
func (t *Template) Render(question, history, persona string) string {
	var b strings.Builder
	b.Grow(len(t.system) + len(persona) + len(history) + len(question) + 64)

	b.WriteString("[INST] <<SYS>>\n")
	b.WriteString(t.system)
	b.WriteString("\n")
	b.WriteString(persona)
	b.WriteString("\n\nPrevious conversation:\n")
	b.WriteString(history)
	b.WriteString("\n<</SYS>>\n\n")
	b.WriteString(question)
	b.WriteString(" [/INST]")

	return b.String()
}
