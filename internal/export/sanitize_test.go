package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName("A\nB\rC\tD\x00", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("team/roster<2024>", 100)
	if got != "team_roster_2024_" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestSanitizeName_KeepsThai(t *testing.T) {
	got := SanitizeName("นักกีฬาบาสเกตบอล-2024", 100)
	if got != "นักกีฬาบาสเกตบอล-2024" {
		t.Fatalf("SanitizeName changed letters: got %q", got)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	if got := Filename("athletes", at); got != "athletes-2024-03-01.csv" {
		t.Errorf("Filename() = %q", got)
	}
	if got := Filename("../..", at); got != ".._..-2024-03-01.csv" {
		t.Errorf("Filename(traversal) = %q", got)
	}
	if got := Filename("", at); got != "athletes-2024-03-01.csv" {
		t.Errorf("Filename(empty) = %q", got)
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputPath(filepath.Join(dir, "out.csv")); err != nil {
		t.Errorf("valid path rejected: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"traversal", dir + "/../out.csv"},
		{"unclean", dir + "//out.csv"},
		{"missing dir", filepath.Join(dir, "nope", "out.csv")},
		{"is directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateOutputPath(tt.path); err == nil {
				t.Errorf("ValidateOutputPath(%q) expected error", tt.path)
			}
		})
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateOutputPath(filepath.Join(file, "out.csv")); err == nil {
		t.Error("expected error when parent is a file")
	}
}
