package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/docflow/internal/models"
)

type upload struct {
	owner       string
	name        string
	content     string
	contentType string
}

type recordingUploader struct {
	mu      sync.Mutex
	uploads []upload
	reject  map[string]bool
}

func (u *recordingUploader) Upload(_ context.Context, owner, fileName string, content []byte, contentType string) (*models.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.reject[fileName] {
		return nil, &models.ValidationError{Code: models.CodeSize, Reason: "too big"}
	}
	u.uploads = append(u.uploads, upload{owner, fileName, string(content), contentType})
	return &models.UploadResult{Success: true, DocumentID: "doc-" + fileName}, nil
}

func (u *recordingUploader) names() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.uploads))
	for i, up := range u.uploads {
		out[i] = up.name
	}
	return out
}

func (u *recordingUploader) count(name string) int {
	n := 0
	for _, got := range u.names() {
		if got == name {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, roots []string, up Uploader, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithDebounce(50 * time.Millisecond)}, opts...)
	w := New(roots, "inbox", up, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWatcher_uploadsNewFileAsOwner(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	startWatcher(t, []string{dir}, up, WithExtensions([]string{".txt"}))

	if err := writeFile(filepath.Join(dir, "note.txt"), "hello inbox"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return up.count("note.txt") == 1 }) {
		t.Fatalf("expected note.txt to be uploaded, got %v", up.names())
	}
	up.mu.Lock()
	got := up.uploads[0]
	up.mu.Unlock()
	if got.owner != "inbox" || got.content != "hello inbox" {
		t.Errorf("unexpected upload %+v", got)
	}
	if got.contentType == "" {
		t.Error("content type should be set")
	}
}

func TestWatcher_skipsFilteredAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	startWatcher(t, []string{dir}, up, WithExtensions([]string{".txt"}))

	for _, name := range []string{"skip.xyz", ".hidden.txt", "draft.txt~", "keep.txt"} {
		if err := writeFile(filepath.Join(dir, name), "x"); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, func() bool { return up.count("keep.txt") == 1 }) {
		t.Fatalf("keep.txt not uploaded: %v", up.names())
	}
	time.Sleep(150 * time.Millisecond)
	if names := up.names(); len(names) != 1 {
		t.Errorf("only keep.txt should be uploaded, got %v", names)
	}
}

func TestWatcher_uploadsEachVersionOnce(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	w := startWatcher(t, []string{dir}, up)

	path := filepath.Join(dir, "a.txt")
	if err := writeFile(path, "one"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return up.count("a.txt") == 1 }) {
		t.Fatalf("first version not uploaded: %v", up.names())
	}

	// Sync over an unchanged file is a no-op.
	w.Sync(context.Background())
	if n := up.count("a.txt"); n != 1 {
		t.Errorf("unchanged file uploaded %d times", n)
	}

	if err := writeFile(path, "two, longer"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return up.count("a.txt") == 2 }) {
		t.Errorf("changed file should be uploaded again, got %v", up.names())
	}
}

func TestWatcher_rejectedFileNotRetried(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := writeFile(path, "pretend this is huge"); err != nil {
		t.Fatal(err)
	}
	up := &recordingUploader{reject: map[string]bool{"big.txt": true}}
	w := New([]string{dir}, "inbox", up)

	w.Sync(context.Background())
	w.Sync(context.Background())
	if _, ok := w.uploaded[path]; !ok {
		t.Error("rejected file should be remembered")
	}
	if len(up.names()) != 0 {
		t.Errorf("rejected file recorded as uploaded: %v", up.names())
	}
}

func TestWatcher_SyncUploadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := mkdirAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a.txt", "sub/b.txt", "c.xyz"} {
		if err := writeFile(filepath.Join(dir, p), "content"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		recursive bool
		want      []string
	}{
		{"recursive", true, []string{"a.txt", "b.txt"}},
		{"flat", false, []string{"a.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &recordingUploader{}
			w := New([]string{dir}, "inbox", up, WithExtensions([]string{"txt"}), WithRecursive(tt.recursive))
			w.Sync(context.Background())
			got := up.names()
			if len(got) != len(tt.want) {
				t.Fatalf("uploaded %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("uploaded %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestWatcher_newFolderIsWatched(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	startWatcher(t, []string{dir}, up, WithExtensions([]string{".txt", ".md"}))

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new folders.
	time.Sleep(100 * time.Millisecond)
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return up.count("deep.txt") == 1 }) {
		t.Errorf("expected deep.txt to be uploaded, got %v", up.names())
	}
}

func TestWatcher_Start_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, &recordingUploader{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, "inbox", &recordingUploader{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.pdf", []string{"PDF"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
