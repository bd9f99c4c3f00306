package reporter

import (
	"context"
	"strings"

	"social-tracker/internal/domain"
)

// Simple оформляет сводку без LLM. Используется, когда ключ OpenAI не задан.
type Simple struct{}

var _ domain.ReportGenerator = Simple{}

// NewSimple создаёт офлайн-генератор.
func NewSimple() Simple {
	return Simple{}
}

// Generate возвращает сводку в виде маркированного списка.
func (Simple) Generate(_ context.Context, summary string) (string, error) {
	var b strings.Builder
	b.WriteString("Monthly report (generated without AI)\n\n")
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("• ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
