package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if len(c.Sentences) != 4 {
		t.Fatalf("len(Sentences) = %d, want 4", len(c.Sentences))
	}
	if len(c.Paragraphs) != 3 {
		t.Fatalf("len(Paragraphs) = %d, want 3", len(c.Paragraphs))
	}
	item, ok := c.Find(KindSentence, 1)
	if !ok || item.Text != "She sells seashells by the seashore." {
		t.Fatalf("Find(sentence, 1) = %+v, %v", item, ok)
	}
	if _, ok := c.Find(KindSentence, 101); ok {
		t.Fatalf("Find(sentence, 101) should miss: paragraph ids are not sentences")
	}
	if _, ok := c.Find(KindParagraph, 102); !ok {
		t.Fatalf("Find(paragraph, 102) should hit")
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"", KindSentence, true},
		{" Paragraph ", KindParagraph, true},
		{"SENTENCE", KindSentence, true},
		{"word", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseKind(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseKind(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDecodeRejectsDuplicateIDs(t *testing.T) {
	src := "sentences:\n  - id: 1\n    text: a\nparagraphs:\n  - id: 1\n    text: b\n"
	if _, err := Decode(strings.NewReader(src)); err == nil {
		t.Fatalf("Decode() expected duplicate id error")
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	src := "sentences:\n  - id: 1\n    body: a\n"
	if _, err := Decode(strings.NewReader(src)); err == nil {
		t.Fatalf("Decode() expected unknown field error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("sentences:\n  - id: 7\n    text: Hello there.\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if item, ok := c.Find(KindSentence, 7); !ok || item.Text != "Hello there." {
		t.Fatalf("Find(sentence, 7) = %+v, %v", item, ok)
	}
}
