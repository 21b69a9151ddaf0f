// Package i18n looks up user-facing strings in embedded YAML catalogs.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used for keys missing from the selected catalog.
const DefaultLocale = "en"

//go:embed locales/*.yaml
var localesFS embed.FS

// Catalog resolves keys for one locale with an English fallback.
type Catalog struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

func loadLocale(fsys fs.FS, locale string) (map[string]string, error) {
	data, err := fs.ReadFile(fsys, path.Join("locales", locale+".yaml"))
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse locale %s: %w", locale, err)
	}
	return m, nil
}

// New loads locale. Matching is case-insensitive and "zh_CN" equals
// "zh-CN"; a bare language such as "zh" picks the first regional catalog.
func New(locale string) (*Catalog, error) {
	fallback, err := loadLocale(localesFS, DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("load default locale: %w", err)
	}
	resolved, ok := resolve(locale)
	if !ok {
		return nil, fmt.Errorf("unknown locale %q (available: %s)", locale, strings.Join(Locales(), ", "))
	}
	messages, err := loadLocale(localesFS, resolved)
	if err != nil {
		return nil, err
	}
	return &Catalog{locale: resolved, messages: messages, fallback: fallback}, nil
}

// Locales lists the embedded catalogs.
func Locales() []string {
	entries, _ := fs.ReadDir(localesFS, "locales")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(out)
	return out
}

func resolve(locale string) (string, bool) {
	if locale == "" {
		return DefaultLocale, true
	}
	want := strings.ToLower(strings.ReplaceAll(locale, "_", "-"))
	// Drop encodings like "en_US.UTF-8".
	if i := strings.IndexByte(want, '.'); i >= 0 {
		want = want[:i]
	}
	all := Locales()
	for _, l := range all {
		if strings.ToLower(l) == want {
			return l, true
		}
	}
	base, _, _ := strings.Cut(want, "-")
	for _, l := range all {
		lb, _, _ := strings.Cut(strings.ToLower(l), "-")
		if lb == base {
			return l, true
		}
	}
	return "", false
}

// Locale is the resolved catalog name.
func (c *Catalog) Locale() string { return c.locale }

// Localize returns the message for key, the English message, or key itself.
func (c *Catalog) Localize(key string) string {
	if v, ok := c.messages[key]; ok {
		return v
	}
	if v, ok := c.fallback[key]; ok {
		return v
	}
	return key
}
