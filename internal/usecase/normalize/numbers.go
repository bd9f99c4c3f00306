package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParseScrapedNumber разбирает счётчики со страниц соцсетей:
// разделители тысяч ("1.234", "1,234"), сокращения "12K" и "1.2M",
// голландское "37 d." (duizend, 37 000).
func ParseScrapedNumber(raw string) int64 {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	if strings.HasSuffix(s, "D.") {
		num := strings.TrimSpace(strings.TrimSuffix(s, "D."))
		// в "1,5 d." запятая служит десятичным разделителем
		num = strings.ReplaceAll(num, ".", "")
		num = strings.ReplaceAll(num, ",", ".")
		return scaled(num, 1000)
	}
	switch {
	case strings.HasSuffix(s, "K"):
		return scaled(strings.TrimSpace(strings.TrimSuffix(s, "K")), 1000)
	case strings.HasSuffix(s, "M"):
		return scaled(strings.TrimSpace(strings.TrimSuffix(s, "M")), 1_000_000)
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func scaled(num string, factor float64) int64 {
	num = strings.ReplaceAll(num, ",", ".")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return floatToInt(math.Round(f * factor))
}
