package scraper

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"social-tracker/internal/domain"
)

const (
	postWindow     = 8000
	feedbackWindow = 5000
	lookbackWindow = 15000
)

var (
	postIDRe       = regexp.MustCompile(`"post_id":"(\d+)"`)
	creationRe     = regexp.MustCompile(`"creation_time":(\d{10})`)
	typenameRe     = regexp.MustCompile(`"__typename":"(\w+)"`)
	feedbackRe     = regexp.MustCompile(`"subscription_target_id":"(\d+)"`)
	reactionRe     = regexp.MustCompile(`"reaction_count":\{"count":(\d+)`)
	shareRe        = regexp.MustCompile(`"i18n_share_count":"(\d+)"`)
	commentRe      = regexp.MustCompile(`"i18n_comment_count":"(\d+)"`)
	commentTotalRe = regexp.MustCompile(`"comment_rendering_instance":\{"comments":\{"total_count":(\d+)\}`)
	videoViewRe    = regexp.MustCompile(`"video_view_count":(\d+)`)
	playCountRe    = regexp.MustCompile(`"play_count":(\d+)`)
	longTextRe     = regexp.MustCompile(`"text":"((?:[^"\\]|\\.){30,})"`)
)

var attachmentTypes = map[string]string{
	"Photo":          "Foto",
	"Video":          "Video",
	"Reel":           "Reel",
	"ExternalUrl":    "Link",
	"Share":          "Gedeeld",
	"Album":          "Album",
	"ProfilePicture": "Profielfoto",
	"CoverPhoto":     "Omslagfoto",
	"Event":          "Evenement",
}

type feedPost struct {
	id       string
	date     string
	kind     string
	text     string
	views    int64
	likes    int64
	comments int64
	shares   int64
}

// ParseFeed извлекает посты из сырого ответа GraphQL ленты страницы.
// Посты без даты отбрасываются; результат отсортирован от новых к старым и обрезан до max.
func ParseFeed(raw string, max int) []domain.RawRecord {
	posts := make(map[string]*feedPost)
	for _, m := range postIDRe.FindAllStringSubmatchIndex(raw, -1) {
		id := raw[m[2]:m[3]]
		p, ok := posts[id]
		if !ok {
			p = &feedPost{id: id}
			posts[id] = p
		}
		if p.date != "" {
			continue
		}
		block := window(raw, m[0]-postWindow, m[1]+postWindow)
		if ct := creationRe.FindStringSubmatch(block); ct != nil {
			sec, _ := strconv.ParseInt(ct[1], 10, 64)
			p.date = time.Unix(sec, 0).UTC().Format("2006-01-02T15:04:05")
		}
		if p.kind == "" {
			for _, tn := range typenameRe.FindAllStringSubmatch(block, -1) {
				if kind, ok := attachmentTypes[tn[1]]; ok {
					p.kind = kind
					break
				}
			}
		}
		p.views = maxCount(p.views, videoViewRe, block)
		p.views = maxCount(p.views, playCountRe, block)
	}

	for _, m := range feedbackRe.FindAllStringSubmatchIndex(raw, -1) {
		p, ok := posts[raw[m[2]:m[3]]]
		if !ok {
			continue
		}
		block := window(raw, m[0], m[1]+feedbackWindow)
		p.likes = maxCount(p.likes, reactionRe, block)
		p.shares = maxCount(p.shares, shareRe, block)
		p.comments = maxCount(p.comments, commentRe, block)
		p.comments = maxCount(p.comments, commentTotalRe, block)
		p.views = maxCount(p.views, videoViewRe, block)
		p.views = maxCount(p.views, playCountRe, block)
	}

	for _, m := range videoViewRe.FindAllStringSubmatchIndex(raw, -1) {
		if p := nearestPost(raw, m[0], posts); p != nil {
			n, _ := strconv.ParseInt(raw[m[2]:m[3]], 10, 64)
			if n > p.views {
				p.views = n
			}
		}
	}

	for _, m := range longTextRe.FindAllStringSubmatchIndex(raw, -1) {
		p := nearestPost(raw, m[0], posts)
		if p == nil || p.text != "" {
			continue
		}
		p.text = decodeJSONString(raw[m[2]:m[3]])
	}

	out := make([]*feedPost, 0, len(posts))
	for _, p := range posts {
		if p.date != "" {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].date != out[j].date {
			return out[i].date > out[j].date
		}
		return out[i].id < out[j].id
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}

	records := make([]domain.RawRecord, 0, len(out))
	for _, p := range out {
		records = append(records, domain.RawRecord{
			"id":       p.id,
			"date":     p.date,
			"type":     p.kind,
			"text":     p.text,
			"views":    p.views,
			"likes":    p.likes,
			"comments": p.comments,
			"shares":   p.shares,
			"source":   "scraper",
		})
	}
	return records
}

func window(s string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

func maxCount(current int64, re *regexp.Regexp, block string) int64 {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return current
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= current {
		return current
	}
	return n
}

// nearestPost ищет последний post_id перед позицией pos.
func nearestPost(raw string, pos int, posts map[string]*feedPost) *feedPost {
	block := window(raw, pos-lookbackWindow, pos)
	ids := postIDRe.FindAllStringSubmatch(block, -1)
	if len(ids) == 0 {
		return nil
	}
	return posts[ids[len(ids)-1][1]]
}

func decodeJSONString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &s); err == nil {
		return s
	}
	return strings.NewReplacer(`\n`, "\n", `\/`, "/").Replace(raw)
}
