package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	tests := []struct {
		path string
		want string
	}{
		{"place.png", "place.1700000000.png"},
		{filepath.Join("data", "place.png"), filepath.Join("data", "place.1700000000.png")},
		{"my.canvas.bmp", "my.canvas.1700000000.bmp"},
		{"place", "place.1700000000"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ArchiveName(tt.path, at); got != tt.want {
				t.Errorf("ArchiveName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestArchiveName_DoesNotAliasInput(t *testing.T) {
	at := time.Unix(42, 0)
	a := ArchiveName("a.b.png", at)
	b := ArchiveName("a.b.png", at.Add(time.Second))
	if a != "a.b.42.png" || b != "a.b.43.png" {
		t.Errorf("got %q and %q", a, b)
	}
}

func TestArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "place.png")
	for _, name := range []string{
		"place.png",
		"place.200.png",
		"place.100.png",
		"place.notastamp.png",
		"place.300.bmp",
		"other.150.png",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Archives(path)
	if err != nil {
		t.Fatalf("Archives() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Archives() = %v, want 2 entries", got)
	}
	if got[0].Path != filepath.Join(dir, "place.100.png") || got[0].Taken.Unix() != 100 {
		t.Errorf("first archive = %+v", got[0])
	}
	if got[1].Path != filepath.Join(dir, "place.200.png") || got[1].Taken.Unix() != 200 {
		t.Errorf("second archive = %+v", got[1])
	}
}

func TestArchives_None(t *testing.T) {
	got, err := Archives(filepath.Join(t.TempDir(), "place.png"))
	if err != nil {
		t.Fatalf("Archives() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Archives() = %v, want none", got)
	}
}

func TestArchives_SameSecondOrderedBySequence(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"place.100-2.png", "place.100.png", "place.100-1.png", "place.100-0.png", "place.99.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Archives(filepath.Join(dir, "place.png"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"place.99.png", "place.100.png", "place.100-1.png", "place.100-2.png"}
	if len(got) != len(want) {
		t.Fatalf("Archives() = %+v, want %v", got, want)
	}
	for i, a := range got {
		if filepath.Base(a.Path) != want[i] {
			t.Errorf("archive %d = %s, want %s", i, filepath.Base(a.Path), want[i])
		}
	}
}
