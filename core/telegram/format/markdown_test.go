package format

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := map[string]string{
		"123456":        "123456",
		"-100":          `\-100`,
		"a_b*c":         `a\_b\*c`,
		"v1.2 (beta)!":  `v1\.2 \(beta\)\!`,
		`back\slash`:    `back\\slash`,
		"plain text ok": "plain text ok",
	}
	for in, want := range tests {
		if got := EscapeMarkdownV2(in); got != want {
			t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMentionHTML(t *testing.T) {
	got := MentionHTML(42, "<Bob>")
	want := `<a href="tg://user?id=42">&lt;Bob&gt;</a>`
	if got != want {
		t.Fatalf("MentionHTML = %q, want %q", got, want)
	}
	if got := MentionHTML(7, " "); !strings.Contains(got, ">7</a>") {
		t.Fatalf("empty name should fall back to id: %q", got)
	}
}

func TestChunk(t *testing.T) {
	if got := Chunk("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text should stay whole: %v", got)
	}

	text := strings.Repeat("ж", 9000)
	parts := Chunk(text, 4096)
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	total := 0
	for _, p := range parts {
		n := utf8.RuneCountInString(p)
		if n > 4096 {
			t.Fatalf("chunk too long: %d runes", n)
		}
		total += n
	}
	if total != 9000 {
		t.Fatalf("lost runes: %d", total)
	}

	lines := strings.Repeat("line\n", 10)
	for _, p := range Chunk(lines, 12) {
		if !strings.HasSuffix(p, "\n") {
			t.Fatalf("chunk %q should end at a line break", p)
		}
	}
}
