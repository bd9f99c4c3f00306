package scraper

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"social-tracker/internal/usecase/normalize"
)

// bodyScanLimit ограничивает текст страницы, в котором ищутся счётчики.
const bodyScanLimit = 2000

var (
	badgeRe     = regexp.MustCompile(`^\(\d+\)\s*`)
	followersRe = regexp.MustCompile(`(?i)([\d.,]+\s*(?:d\.)?)\s*(?:volgers|followers)`)
	likesRe     = regexp.MustCompile(`(?i)([\d.,]+\s*[km]?)\s*(?:vind-ik-leuks|likes)`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// PageInfo содержит сведения о странице Facebook со снимка HTML.
type PageInfo struct {
	Name      string `json:"name"`
	Followers int64  `json:"followers"`
	Likes     int64  `json:"likes"`
}

// ParsePageInfo извлекает имя страницы и счётчики из HTML.
func ParsePageInfo(r io.Reader) (PageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return PageInfo{}, fmt.Errorf("scraper: html: %w", err)
	}
	info := PageInfo{Name: pageName(doc.Find("title").First().Text())}

	body := spacesRe.ReplaceAllString(doc.Find("body").Text(), " ")
	if runes := []rune(body); len(runes) > bodyScanLimit {
		body = string(runes[:bodyScanLimit])
	}
	if m := followersRe.FindStringSubmatch(body); m != nil {
		info.Followers = normalize.ParseScrapedNumber(m[1])
	}
	if m := likesRe.FindStringSubmatch(body); m != nil {
		info.Likes = normalize.ParseScrapedNumber(m[1])
	}
	return info, nil
}

func pageName(title string) string {
	name := badgeRe.ReplaceAllString(strings.TrimSpace(title), "")
	if i := strings.Index(name, " | "); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, " - "); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(name, "Facebook", ""))
}
