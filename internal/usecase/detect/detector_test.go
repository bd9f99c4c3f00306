package detect

import (
	"testing"

	"social-tracker/internal/brands"
	"social-tracker/internal/domain"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		filename string
		want     domain.Platform
	}{
		{name: "instagram marker", header: []string{"Datum", "Vind-ik-leuks"}, filename: "export.csv", want: domain.PlatformInstagram},
		{name: "facebook marker", header: []string{"Datum", "Deelacties"}, filename: "export.csv", want: domain.PlatformFacebook},
		{name: "instagram marker wins over facebook", header: []string{"Deelacties", " Media type "}, filename: "fb.csv", want: domain.PlatformInstagram},
		{name: "marker wins over filename", header: []string{"Berichttype"}, filename: "instagram_feb.csv", want: domain.PlatformFacebook},
		{name: "filename fallback", header: []string{"Datum", "Likes"}, filename: "export_ig_feb.csv", want: domain.PlatformInstagram},
		{name: "filename with directory", header: []string{"Datum"}, filename: "/data/Insta/Maart.CSV", want: domain.PlatformFacebook},
		{name: "default facebook", header: []string{"Datum"}, filename: "export_feb.csv", want: domain.PlatformFacebook},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPlatform(tt.header, tt.filename); got != tt.want {
				t.Fatalf("DetectPlatform(%v, %q) = %s, want %s", tt.header, tt.filename, got, tt.want)
			}
		})
	}
}

func TestDetectBrand(t *testing.T) {
	catalog := brands.Default()
	tests := []struct {
		name string
		row  map[string]string
		want string
		ok   bool
	}{
		{name: "page name", row: map[string]string{"Naam van pagina": "Prins Petfoods"}, want: "prins", ok: true},
		{name: "account name", row: map[string]string{"Accountnaam": "edupet.nl"}, want: "edupet", ok: true},
		{name: "falls through unmatched column", row: map[string]string{"Naam van pagina": "Onbekend", "Gebruikersnaam account": "prinspetfoods"}, want: "prins", ok: true},
		{name: "unknown", row: map[string]string{"Naam van pagina": "Andere Winkel"}, ok: false},
		{name: "no page columns", row: map[string]string{"Datum": "2026-02-10"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectBrand(tt.row, catalog)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("DetectBrand = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
