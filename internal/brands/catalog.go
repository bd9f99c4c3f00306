package brands

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"social-tracker/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// Brand описывает бренд и его аккаунты во внешних API.
type Brand struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Meta     struct {
		PageID    string `yaml:"page_id"`
		PageIDEnv string `yaml:"page_id_env"`
		TokenEnv  string `yaml:"token_env"`
	} `yaml:"meta"`
	TikTok struct {
		TokenEnv string `yaml:"token_env"`
	} `yaml:"tiktok"`
}

type keywordRule struct {
	keyword string
	brand   string
}

// Catalog хранит бренды и упорядоченные правила распознавания.
type Catalog struct {
	brands []Brand
	rules  []keywordRule
}

type catalogFile struct {
	Brands []Brand `yaml:"brands"`
}

// Default возвращает встроенный каталог (prins, edupet).
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("brands: встроенный каталог повреждён: %v", err))
	}
	return c
}

// Load читает каталог из YAML-файла; пустой путь даёт встроенный каталог.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("brands: чтение %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML-каталог.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("brands: разбор yaml: %w", err)
	}
	if len(file.Brands) == 0 {
		return nil, errors.New("brands: каталог пуст")
	}
	c := &Catalog{}
	seen := make(map[string]struct{}, len(file.Brands))
	for _, b := range file.Brands {
		b.Name = domain.NormalizeBrand(b.Name)
		if b.Name == "" {
			return nil, errors.New("brands: бренд без имени")
		}
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("brands: бренд %q указан дважды", b.Name)
		}
		seen[b.Name] = struct{}{}
		for _, kw := range b.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			c.rules = append(c.rules, keywordRule{keyword: kw, brand: b.Name})
		}
		c.brands = append(c.brands, b)
	}
	return c, nil
}

// Match ищет ключевое слово как подстроку значения без учёта регистра.
func (c *Catalog) Match(value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}
	for _, rule := range c.rules {
		if strings.Contains(value, rule.keyword) {
			return rule.brand, true
		}
	}
	return "", false
}

// Names возвращает имена брендов в порядке каталога.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.brands))
	for _, b := range c.brands {
		names = append(names, b.Name)
	}
	return names
}

// Has сообщает, известен ли бренд.
func (c *Catalog) Has(name string) bool {
	_, ok := c.find(name)
	return ok
}

// Account собирает идентификаторы бренда, подставляя секреты из окружения.
func (c *Catalog) Account(name string, getenv func(string) string) (domain.BrandAccount, bool) {
	b, ok := c.find(name)
	if !ok {
		return domain.BrandAccount{}, false
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	acc := domain.BrandAccount{Brand: b.Name, PageID: b.Meta.PageID}
	if acc.PageID == "" && b.Meta.PageIDEnv != "" {
		acc.PageID = getenv(b.Meta.PageIDEnv)
	}
	if b.Meta.TokenEnv != "" {
		acc.MetaToken = getenv(b.Meta.TokenEnv)
	}
	if b.TikTok.TokenEnv != "" {
		acc.TikTokToken = getenv(b.TikTok.TokenEnv)
	}
	return acc, true
}

func (c *Catalog) find(name string) (Brand, bool) {
	name = domain.NormalizeBrand(name)
	for _, b := range c.brands {
		if b.Name == name {
			return b, true
		}
	}
	return Brand{}, false
}
