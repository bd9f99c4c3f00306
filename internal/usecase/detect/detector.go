package detect

import (
	"path/filepath"
	"strings"

	"social-tracker/internal/domain"
)

// Колонки, которые встречаются только в выгрузках одной платформы.
var (
	InstagramOnlyColumns = []string{"Vind-ik-leuks", "Media type"}
	FacebookOnlyColumns  = []string{"Deelacties", "Berichttype", "Totaal aantal klikken"}
)

// PageColumns перечисляет колонки с именем аккаунта в порядке приоритета.
var PageColumns = []string{"Naam van pagina", "Accountnaam", "Gebruikersnaam account"}

var instagramFilenameHints = []string{"ig", "instagram", "insta"}

// BrandMatcher сопоставляет имя аккаунта с брендом.
type BrandMatcher interface {
	Match(value string) (string, bool)
}

// DetectPlatform определяет платформу по заголовку CSV, затем по имени файла.
// Колонки-маркеры надёжнее имени файла; по умолчанию facebook.
func DetectPlatform(header []string, filename string) domain.Platform {
	set := make(map[string]struct{}, len(header))
	for _, h := range header {
		set[strings.TrimSpace(h)] = struct{}{}
	}
	if containsAny(set, InstagramOnlyColumns) {
		return domain.PlatformInstagram
	}
	if containsAny(set, FacebookOnlyColumns) {
		return domain.PlatformFacebook
	}
	base := filepath.Base(filename)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	for _, hint := range instagramFilenameHints {
		if strings.Contains(stem, hint) {
			return domain.PlatformInstagram
		}
	}
	return domain.PlatformFacebook
}

// DetectBrand определяет бренд строки по первой непустой колонке аккаунта.
func DetectBrand(row map[string]string, matcher BrandMatcher) (string, bool) {
	for _, col := range PageColumns {
		value := strings.TrimSpace(row[col])
		if value == "" {
			continue
		}
		if brand, ok := matcher.Match(value); ok {
			return brand, true
		}
	}
	return "", false
}

func containsAny(set map[string]struct{}, markers []string) bool {
	for _, m := range markers {
		if _, ok := set[m]; ok {
			return true
		}
	}
	return false
}
