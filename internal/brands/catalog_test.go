package brands

import "testing"

func TestDefaultCatalogMatch(t *testing.T) {
	c := Default()
	tests := []struct {
		name  string
		value string
		want  string
		ok    bool
	}{
		{name: "exact", value: "Prins", want: "prins", ok: true},
		{name: "suffix appended by export", value: "Prins Petfoods B.V.", want: "prins", ok: true},
		{name: "edupet", value: "EduPet Nederland", want: "edupet", ok: true},
		{name: "unknown", value: "Royal Canin", ok: false},
		{name: "empty", value: "  ", ok: false},
		// Подстрочное совпадение: известное ограничение эвристики.
		{name: "incidental substring", value: "De Prinsenhof", want: "prins", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Match(tt.value)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Match(%q) = %q, %v; want %q, %v", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseCustomCatalog(t *testing.T) {
	data := []byte(`
brands:
  - name: Kattenbrokjes
    keywords: ["katten"]
    meta:
      page_id: "123"
      token_env: KAT_TOKEN
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if names := c.Names(); len(names) != 1 || names[0] != "kattenbrokjes" {
		t.Fatalf("неожиданные имена: %v", names)
	}
	acc, ok := c.Account("kattenbrokjes", func(key string) string {
		if key == "KAT_TOKEN" {
			return "secret"
		}
		return ""
	})
	if !ok || acc.PageID != "123" || acc.MetaToken != "secret" {
		t.Fatalf("неожиданный аккаунт: %+v", acc)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	data := []byte("brands:\n  - name: a\n  - name: A\n")
	if _, err := Parse(data); err == nil {
		t.Fatalf("ожидали ошибку для дубликата")
	}
}

func TestAccountReadsPageIDFromEnv(t *testing.T) {
	c := Default()
	acc, ok := c.Account("edupet", func(key string) string {
		switch key {
		case "EDUPET_PAGE_ID":
			return "999"
		case "EDUPET_TOKEN":
			return "tok"
		}
		return ""
	})
	if !ok || acc.PageID != "999" || acc.MetaToken != "tok" || acc.TikTokToken != "" {
		t.Fatalf("неожиданный аккаунт: %+v", acc)
	}
	if _, ok := c.Account("unknown", nil); ok {
		t.Fatalf("не ожидали аккаунт для неизвестного бренда")
	}
}
