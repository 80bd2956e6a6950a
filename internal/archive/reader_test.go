package archive

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildZip assembles an in-memory zip from path->content pairs. A path ending
// in "/" produces a directory-only entry.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestReadArchive(t *testing.T) {
	data := buildZip(t, map[string]string{
		"export/connections/followers_and_following/following.json": `{"relationships_following":[]}`,
		"export/media/posts/pic.jpg":                                "jpegbytes",
		"export/media/":                                             "",
	})

	entries, err := ReadArchive(context.Background(), data, testLogger(), nil)
	if err != nil {
		t.Fatalf("ReadArchive() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (directory entry must be dropped)", len(entries))
	}

	byPath := map[string]Entry{}
	for _, e := range entries {
		byPath[e.Path] = e
	}

	jpg, ok := byPath["export/media/posts/pic.jpg"]
	if !ok {
		t.Fatal("jpg entry missing")
	}
	if string(jpg.Data) != "jpegbytes" {
		t.Errorf("jpg data = %q", jpg.Data)
	}
	if jpg.ContentType != "image/jpeg" {
		t.Errorf("jpg content type = %q, want image/jpeg", jpg.ContentType)
	}

	js, ok := byPath["export/connections/followers_and_following/following.json"]
	if !ok {
		t.Fatal("json entry missing")
	}
	if js.ContentType != "application/json" {
		t.Errorf("json content type = %q", js.ContentType)
	}
}

func TestReadArchiveChunkCallback(t *testing.T) {
	big := bytes.Repeat([]byte("a"), 3*copyChunkSize+17)
	data := buildZip(t, map[string]string{"root/big.txt": string(big)})

	var last int64
	entries, err := ReadArchive(context.Background(), data, testLogger(), func(path string, total int64) {
		if path != "root/big.txt" {
			t.Errorf("chunk path = %q", path)
		}
		last = total
	})
	if err != nil {
		t.Fatalf("ReadArchive() error = %v", err)
	}
	if len(entries) != 1 || len(entries[0].Data) != len(big) {
		t.Fatalf("entry not fully drained")
	}
	if last != int64(len(big)) {
		t.Errorf("final chunk total = %d, want %d", last, len(big))
	}
}

func TestReadArchiveCorruptFraming(t *testing.T) {
	if _, err := ReadArchive(context.Background(), []byte("not a zip at all"), testLogger(), nil); err == nil {
		t.Fatal("expected error for unreadable archive framing")
	}
}

func TestReadStateCompletion(t *testing.T) {
	t.Run("not done while streams are draining", func(t *testing.T) {
		s := newReadState()
		s.entryDiscovered()
		s.entryDiscovered()
		s.entryCompleted()
		s.finishDiscovery()
		if s.finished() {
			t.Fatal("reported completion with an entry stream still open")
		}
		s.entryCompleted()
		if !s.finished() {
			t.Fatal("not complete after all entries drained")
		}
	})

	t.Run("not done before discovery finishes", func(t *testing.T) {
		s := newReadState()
		s.entryDiscovered()
		s.entryCompleted()
		if s.finished() {
			t.Fatal("reported completion before discovery finished")
		}
		s.finishDiscovery()
		if !s.finished() {
			t.Fatal("not complete after discovery finished with counters equal")
		}
	})

	t.Run("empty archive completes on discovery end", func(t *testing.T) {
		s := newReadState()
		s.finishDiscovery()
		if !s.finished() {
			t.Fatal("empty read did not complete")
		}
	})
}

func TestReadDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "my-export")
	sub := filepath.Join(root, "connections", "followers_and_following")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "following.json"), []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadDir(context.Background(), root, testLogger())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	want := "my-export/connections/followers_and_following/following.json"
	if entries[0].Path != want {
		t.Errorf("path = %q, want %q", entries[0].Path, want)
	}
}
