package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestIsImage(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"photo.png", true},
		{"photo.bmp", true},
		{"photo.gif", true},
		{"photo.tiff", true},
		{"photo.webp", true},
		{"notes.txt", false},
		{"archive.tar.gz", false},
		{"jpg", false},
		{"video.mp4", false},
	}
	for _, tc := range cases {
		if got := IsImage(tc.path); got != tc.want {
			t.Errorf("IsImage(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestDiscoverRecursive(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "tikvahpharma", "1001.jpg"))
	mustWrite(t, filepath.Join(root, "tikvahpharma", "1002.PNG"))
	mustWrite(t, filepath.Join(root, "CheMed123", "deep", "nested", "5.webp"))
	mustWrite(t, filepath.Join(root, "tikvahpharma", "manifest.json"))
	mustWrite(t, filepath.Join(root, "readme.txt"))

	paths, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "CheMed123", "deep", "nested", "5.webp"),
		filepath.Join(root, "tikvahpharma", "1001.jpg"),
		filepath.Join(root, "tikvahpharma", "1002.PNG"),
	}
	sort.Strings(paths)
	if len(paths) != len(want) {
		t.Fatalf("Discover() returned %d paths, want %d: %v", len(paths), len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestDiscoverEmptyRoot(t *testing.T) {
	paths, err := Discover(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("Discover() on empty root returned %v", paths)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("Discover() on a missing root returned nil error")
	}
}

func TestDiscoverRootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.jpg")
	mustWrite(t, path)
	if _, err := Discover(context.Background(), path); err == nil {
		t.Fatal("Discover() on a non-directory root returned nil error")
	}
}

func TestDiscoverCancelled(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Discover(ctx, root); err == nil {
		t.Fatal("Discover() with cancelled context returned nil error")
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}
