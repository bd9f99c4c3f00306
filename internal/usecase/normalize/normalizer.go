package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"social-tracker/internal/domain"
)

// Канонические поля сырой записи.
const (
	FieldDate     = "date"
	FieldType     = "type"
	FieldText     = "text"
	FieldReach    = "reach"
	FieldViews    = "views"
	FieldLikes    = "likes"
	FieldComments = "comments"
	FieldShares   = "shares"
	FieldClicks   = "clicks"
	FieldBrand    = "brand"
	FieldID       = "id"
	FieldSource   = "source"
)

// MaxTextRunes ограничивает длину текста поста.
const MaxTextRunes = 200

// DefaultContentType подставляется, если тип не указан.
const DefaultContentType = "Post"

// TimestampLayout задаёт формат времени публикации (UTC без смещения).
const TimestampLayout = "2006-01-02T15:04:05"

// ColumnCandidate задаёт допустимые заголовки CSV для поля.
type ColumnCandidate struct {
	Field   string
	Headers []string
}

// ColumnMap перечисляет варианты заголовков выгрузок Meta Business Suite (NL/EN).
var ColumnMap = []ColumnCandidate{
	{Field: FieldDate, Headers: []string{"Publicatietijdstip", "Datum", "Date", "Created", "Aangemaakt"}},
	{Field: FieldType, Headers: []string{"Berichttype", "Type", "Media type", "Post Type", "Content type"}},
	{Field: FieldText, Headers: []string{"Titel", "Bericht", "Caption", "Message", "Beschrijving", "Omschrijving", "Post Message"}},
	{Field: FieldReach, Headers: []string{"Bereik", "Reach", "Lifetime Post Total Reach"}},
	{Field: FieldViews, Headers: []string{"Weergaven", "Impressions", "Views", "Lifetime Post Total Impressions"}},
	{Field: FieldLikes, Headers: []string{"Reacties", "Likes", "Vind-ik-leuks", "Lifetime Post Like Reactions"}},
	{Field: FieldComments, Headers: []string{"Opmerkingen", "Comments", "Lifetime Post Comments"}},
	{Field: FieldShares, Headers: []string{"Deelacties", "Shares", "Lifetime Post Shares"}},
	{Field: FieldClicks, Headers: []string{"Totaal aantal klikken", "Clicks", "Link Clicks", "Lifetime Post Total Clicks"}},
}

// Columns сопоставляет поле с реальным заголовком; "" если не найден.
type Columns map[string]string

// ResolveColumns сопоставляет заголовки CSV с каноническими полями.
// Порядок кандидатов важнее порядка колонок в файле.
func ResolveColumns(header []string) Columns {
	cols := make(Columns, len(ColumnMap))
	for _, cand := range ColumnMap {
		cols[cand.Field] = ""
	candidates:
		for _, name := range cand.Headers {
			for _, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), name) {
					cols[cand.Field] = h
					break candidates
				}
			}
		}
	}
	return cols
}

// Однозначные день и месяц ("2/10/2026 8:05") тоже принимаются.
var dateLayouts = []string{
	"1/2/2006 15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2-1-2006 15:04",
	"2/1/2006 15:04",
	"2006-01-02",
}

// форматы API содержат смещение и переводятся в UTC.
var zonedLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// ParseDate приводит дату к TimestampLayout. Нераспознанная строка возвращается как есть.
func ParseDate(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(TimestampLayout)
		}
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format(TimestampLayout)
		}
	}
	return value
}

// FromUnix форматирует unix-время в TimestampLayout; 0 даёт пустую строку.
func FromUnix(sec int64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(TimestampLayout)
}

// SafeInt приводит значение к целому; пустые и битые значения дают 0.
func SafeInt(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return 0
		}
		return int64(val)
	case float32:
		return floatToInt(float64(val))
	case float64:
		return floatToInt(val)
	case json.Number:
		return SafeInt(val.String())
	case string:
		s := strings.ReplaceAll(val, ",", "")
		s = strings.ReplaceAll(s, " ", "")
		s = strings.TrimSpace(s)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return floatToInt(f)
	default:
		return 0
	}
}

func floatToInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// Truncate обрезает строку до n рун.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// FromRecord превращает сырую запись в канонический пост со всеми полями.
func FromRecord(rec domain.RawRecord, platform domain.Platform) domain.Post {
	contentType := strings.TrimSpace(rec.String(FieldType))
	if contentType == "" {
		contentType = DefaultContentType
	}
	return domain.Post{
		Platform:    platform,
		Brand:       strings.ToLower(strings.TrimSpace(rec.String(FieldBrand))),
		ExternalID:  strings.TrimSpace(rec.String(FieldID)),
		PublishedAt: ParseDate(rec.String(FieldDate)),
		ContentType: contentType,
		Text:        Truncate(strings.TrimSpace(rec.String(FieldText)), MaxTextRunes),
		Reach:       nonNegative(SafeInt(rec[FieldReach])),
		Impressions: nonNegative(SafeInt(rec[FieldViews])),
		Likes:       nonNegative(SafeInt(rec[FieldLikes])),
		Comments:    nonNegative(SafeInt(rec[FieldComments])),
		Shares:      nonNegative(SafeInt(rec[FieldShares])),
		Clicks:      nonNegative(SafeInt(rec[FieldClicks])),
		Source:      strings.TrimSpace(rec.String(FieldSource)),
	}
}

// RecordFromCSV собирает сырую запись из строки CSV по сопоставленным колонкам.
func RecordFromCSV(row map[string]string, cols Columns, source string) domain.RawRecord {
	rec := domain.RawRecord{FieldSource: source}
	for field, header := range cols {
		if header == "" {
			continue
		}
		rec[field] = row[header]
	}
	return rec
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// FromCSVRow нормализует строку CSV.
func FromCSVRow(row map[string]string, cols Columns, platform domain.Platform, source string) domain.Post {
	return FromRecord(RecordFromCSV(row, cols, source), platform)
}
