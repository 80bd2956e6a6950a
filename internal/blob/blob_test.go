package blob

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"igarchive/internal/model"
)

func TestFlattenURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{
			name: "message media path",
			uri:  "your_instagram_activity/messages/inbox/chat_abc123/photos/img.jpg",
			want: "your_instagram_activity_messages_inbox_chat_abc123_photos_img.jpg",
		},
		{
			name: "leading slashes stripped",
			uri:  "//media/posts/p.png",
			want: "media_posts_p.png",
		},
		{
			name: "reserved characters replaced",
			uri:  `media/a<b>c:d"e|f?g*h.jpg`,
			want: "media_a_b_c_d_e_f_g_h.jpg",
		},
		{
			name: "already flat",
			uri:  "plain.jpg",
			want: "plain.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlattenURI(tt.uri); got != tt.want {
				t.Errorf("FlattenURI(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func roundTrip(t *testing.T, s Store) {
	t.Helper()

	key, err := s.Put("media/posts/a.jpg", time.Unix(1700000000, 0), model.MediaPhoto, strings.NewReader("imagebytes"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if key != "media_posts_a.jpg" {
		t.Errorf("key = %q", key)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.Get(key, &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "imagebytes" {
		t.Errorf("Get() = %q", buf.String())
	}

	if err := s.Get("no_such_key", &bytes.Buffer{}); err == nil {
		t.Error("Get() on missing key did not error")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := s.Get(key, &bytes.Buffer{}); err == nil {
		t.Error("Get() after Clear() did not error")
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	s, err := NewBadgerStore("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
}

func TestBadgerStoreBatchFlushOnThreshold(t *testing.T) {
	s, err := NewBadgerStore("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	defer s.Close()

	// One past the batch size forces an internal flush; the first blob must
	// then be readable without an explicit Flush call.
	for i := 0; i <= kvBatchSize; i++ {
		uri := fmt.Sprintf("media/file_%03d.jpg", i)
		if _, err := s.Put(uri, time.Time{}, model.MediaPhoto, strings.NewReader("b")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	var buf bytes.Buffer
	if err := s.Get(FlattenURI("media/file_000.jpg"), &buf); err != nil {
		t.Errorf("Get() after threshold flush error = %v", err)
	}
}

func TestProbe(t *testing.T) {
	if !Probe(t.TempDir()) {
		t.Error("Probe() = false for a writable directory")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New("auto", t.TempDir(), "", logger)
	if err != nil {
		t.Fatalf("New(auto) error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*FSStore); !ok {
		t.Errorf("New(auto) with writable media root = %T, want *FSStore", s)
	}

	b, err := New("badger", "", "", logger)
	if err != nil {
		t.Fatalf("New(badger) error = %v", err)
	}
	defer b.Close()
	if _, ok := b.(*BadgerStore); !ok {
		t.Errorf("New(badger) = %T, want *BadgerStore", b)
	}
}
