package telegram

import "strings"

// MessageLimit задаёт максимальную длину сообщения Telegram в рунах.
const MessageLimit = 4096

// SplitMessage режет текст на части не длиннее limit рун.
// Разрез ставится по последнему переводу строки в окне, иначе ровно по лимиту.
func SplitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MessageLimit
	}
	rest := []rune(text)
	var parts []string
	for len(rest) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if rest[i-1] == '\n' {
				cut = i
				break
			}
		}
		if chunk := strings.Trim(string(rest[:cut]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		rest = []rune(strings.TrimLeft(string(rest[cut:]), "\n"))
	}
	if chunk := strings.Trim(string(rest), "\n"); chunk != "" {
		parts = append(parts, chunk)
	}
	return parts
}
