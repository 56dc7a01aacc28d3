// Package catalog loads the embedded locale message catalogs and exposes
// x/text printers for them.
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale and the fallback for lookups.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

// Bundle holds messages per locale, merged across namespaces.
type Bundle struct {
	locales map[string]map[string]string
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	matcher       language.Matcher
	matcherTags   []language.Tag
)

// Default returns the embedded bundle, registering it with x/text on first use.
func Default() *Bundle {
	defaultOnce.Do(func() {
		bundle, err := LoadFromFS(embeddedCatalogFS)
		if err != nil {
			panic(err)
		}
		if err := bundle.Register(); err != nil {
			panic(err)
		}
		defaultBundle = bundle
		matcherTags = bundle.tags()
		matcher = language.NewMatcher(matcherTags)
	})
	return defaultBundle
}

// Printer returns a printer for the closest supported locale, falling back to
// BaseLocale when nothing matches.
func Printer(locale string) *message.Printer {
	Default()
	requested, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return message.NewPrinter(matcherTags[0])
	}
	_, idx, confidence := matcher.Match(requested)
	if confidence == language.No {
		idx = 0
	}
	return message.NewPrinter(matcherTags[idx])
}

// LoadFromFS reads every locales/<locale>/<namespace>.yaml file in catalogFS.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		locale, messages, err := parseCatalogFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if want := path.Base(path.Dir(p)); locale != want {
			return nil, fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, want)
		}
		merged, ok := bundle.locales[locale]
		if !ok {
			merged = map[string]string{}
			bundle.locales[locale] = merged
		}
		for key, value := range messages {
			if _, exists := merged[key]; exists {
				return nil, fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, locale)
			}
			merged[key] = value
		}
	}
	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

// Register registers all messages with x/text/message under each locale tag
// and its base language.
func (b *Bundle) Register() error {
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, conf := tag.Base(); conf != language.No {
			if baseTag := language.Make(base.String()); baseTag != tag {
				tags = append(tags, baseTag)
			}
		}
		for key, value := range b.locales[locale] {
			for _, t := range tags {
				if err := message.SetString(t, key, value); err != nil {
					return fmt.Errorf("register %s %q: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Message returns one raw message with base-locale fallback.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if msgs, ok := b.locales[strings.TrimSpace(locale)]; ok {
		if value, ok := msgs[key]; ok {
			return value, true
		}
	}
	value, ok := b.locales[BaseLocale][key]
	return value, ok
}

// tags lists supported locales with BaseLocale first, as the matcher expects
// its default in position zero.
func (b *Bundle) tags() []language.Tag {
	out := []language.Tag{language.MustParse(BaseLocale)}
	for _, locale := range b.Locales() {
		if locale == BaseLocale {
			continue
		}
		out = append(out, language.MustParse(locale))
	}
	return out
}

// catalogFile is the on-disk shape of locales/<locale>/<namespace>.yaml.
type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

func parseCatalogFile(data []byte) (string, map[string]string, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return "", nil, fmt.Errorf("decode yaml: %w", err)
	}
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return "", nil, fmt.Errorf("missing locale")
	}
	if len(file.Messages) == 0 {
		return "", nil, fmt.Errorf("missing messages")
	}
	for key := range file.Messages {
		if strings.TrimSpace(key) == "" {
			return "", nil, fmt.Errorf("message key cannot be blank")
		}
	}
	return locale, file.Messages, nil
}
