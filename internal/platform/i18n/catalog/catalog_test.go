package catalog

import (
	"testing"
	"testing/fstest"
)

func TestDefaultHasExpectedLocales(t *testing.T) {
	bundle := Default()
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("pt-BR") {
		t.Fatal("expected locale pt-BR")
	}
	if _, ok := bundle.Message("pt-BR", "notice.user_joined"); !ok {
		t.Fatal("expected pt-BR join notice")
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	got, ok := Default().Message("fr-FR", "notice.system_label")
	if !ok || got != "system" {
		t.Fatalf("Message = %q, %v; want %q, true", got, ok, "system")
	}
}

func TestPrinterFormatsLocalizedNotices(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{locale: "en-US", want: "Ana joined the room"},
		{locale: "pt-BR", want: "Ana entrou na sala"},
		{locale: "pt", want: "Ana entrou na sala"},
		{locale: "de-DE", want: "Ana joined the room"},
		{locale: "not a locale", want: "Ana joined the room"},
	}
	for _, tt := range tests {
		got := Printer(tt.locale).Sprintf("notice.user_joined", "Ana")
		if got != tt.want {
			t.Fatalf("Printer(%q) = %q, want %q", tt.locale, got, tt.want)
		}
	}
}

func TestLoadFromFSRejectsLocaleMismatch(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en-US/notice.yaml": &fstest.MapFile{Data: []byte(`locale: "pt-BR"
namespace: "notice"
messages:
  "a.key": "a"
`)},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossNamespaces(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en-US/core.yaml": &fstest.MapFile{Data: []byte(`locale: "en-US"
namespace: "core"
messages:
  "a.key": "a"
`)},
		"locales/en-US/notice.yaml": &fstest.MapFile{Data: []byte(`locale: "en-US"
namespace: "notice"
messages:
  "a.key": "b"
`)},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/pt-BR/notice.yaml": &fstest.MapFile{Data: []byte(`locale: "pt-BR"
messages:
  "a.key": "a"
`)},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestParseCatalogFile(t *testing.T) {
	locale, messages, err := parseCatalogFile([]byte(`locale: "en-US"
namespace: "notice"
messages:
  "notice.user_left": "%s left: \"bye\""
`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	if locale != "en-US" || messages["notice.user_left"] != `%s left: "bye"` {
		t.Fatalf("catalog = %q %q", locale, messages)
	}

	tests := map[string]string{
		"missing locale":   "messages:\n  \"k\": \"v\"\n",
		"missing messages": "locale: \"en-US\"\n",
		"unknown field":    "locale: \"en-US\"\nlabels:\n  \"k\": \"v\"\n",
		"blank key":        "locale: \"en-US\"\nmessages:\n  \" \": \"v\"\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := parseCatalogFile([]byte(data)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}
