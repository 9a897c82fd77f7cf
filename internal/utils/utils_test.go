package utils

import (
	"strings"
	"testing"
)

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret returned error: %v", err)
		}
		if len(s) != 12 {
			t.Errorf("expected 12 characters, got %d (%q)", len(s), s)
		}
		for _, r := range s {
			if !strings.ContainsRune(secretAlphabet, r) {
				t.Errorf("unexpected character %q in token %q", r, s)
			}
		}
		if seen[s] {
			t.Errorf("duplicate token generated: %q", s)
		}
		seen[s] = true
	}
}

func TestGenerateSessionKey(t *testing.T) {
	k1, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey returned error: %v", err)
	}
	k2, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey returned error: %v", err)
	}
	if k1 == k2 {
		t.Error("session keys should not repeat")
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 characters, got %d", len(k1))
	}
	if strings.ContainsAny(k1, "+/=") {
		t.Errorf("session key contains non URL-safe characters: %q", k1)
	}
}

func TestHashIP(t *testing.T) {
	h1 := HashIP("203.0.113.7", "salt-a")
	h2 := HashIP("203.0.113.7", "salt-a")
	if h1 != h2 {
		t.Error("same IP and salt should hash identically")
	}
	if HashIP("203.0.113.7", "salt-b") == h1 {
		t.Error("different salt should change the hash")
	}
	if HashIP("203.0.113.8", "salt-a") == h1 {
		t.Error("different IP should change the hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(h1))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "download"},
		{"simple", "report.pdf", "report.pdf"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"quotes", `file"name".txt`, "file_name_.txt"},
		{"newlines", "evil\r\nheader.txt", "evil__header.txt"},
		{"only dots", "...", "download"},
		{"unicode kept", "резюме.docx", "резюме.docx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	if got := ContentDisposition("report.pdf"); got != `attachment; filename="report.pdf"` {
		t.Errorf("unexpected ASCII disposition: %q", got)
	}

	got := ContentDisposition("резюме.docx")
	if !strings.HasPrefix(got, "attachment; filename*=UTF-8''") {
		t.Errorf("non-ASCII name should use RFC 5987 form, got %q", got)
	}
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("disposition must not contain header-breaking characters: %q", got)
	}
}
