package store

import (
	"context"
	"testing"
	"time"

	"igarchive/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestMigrationsBringSchemaCurrent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations after Migrate: %v", err)
	}
}

func TestUsersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	observed := time.Unix(1700000000, 0).UTC()

	users := []model.User{
		{Username: "alice", Follower: &model.Flag{ObservedAt: observed}, Following: &model.Flag{ObservedAt: observed}, StoriesLiked: 3},
		{Username: "bob", Blocked: &model.Flag{}},
	}
	if err := s.WriteUsers(ctx, users); err != nil {
		t.Fatalf("WriteUsers: %v", err)
	}

	got, err := s.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d users, want 2", len(got))
	}
	alice := got[0]
	if alice.Username != "alice" || alice.StoriesLiked != 3 {
		t.Errorf("alice = %+v", alice)
	}
	if alice.Follower == nil || !alice.Follower.ObservedAt.Equal(observed) {
		t.Errorf("follower flag = %+v", alice.Follower)
	}
	if alice.Blocked != nil {
		t.Error("alice should not be blocked")
	}
	bob := got[1]
	if bob.Blocked == nil {
		t.Error("bob's zero-time blocked flag must survive the round trip")
	}

	// Writing the same users again is an upsert, not a duplicate.
	if err := s.WriteUsers(ctx, users); err != nil {
		t.Fatalf("WriteUsers again: %v", err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Users != 2 {
		t.Errorf("got %d users after rewrite, want 2", st.Users)
	}
}

func TestMessagesRequireConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := model.Message{ConversationTitle: "nope", SenderName: "x", Timestamp: time.Now()}
	if err := s.WriteMessages(ctx, []model.Message{msg}); err == nil {
		t.Fatal("writing a message without its conversation should fail the foreign key")
	}

	conv := model.Conversation{Title: "Alice", Participants: []string{"Alice", "Me"}}
	if err := s.WriteConversations(ctx, []model.Conversation{conv}); err != nil {
		t.Fatalf("WriteConversations: %v", err)
	}
	msg = model.Message{
		ConversationTitle: "Alice",
		SenderName:        "Alice",
		Timestamp:         time.UnixMilli(1700000000000).UTC(),
		Content:           "hello",
		Reactions:         []model.Reaction{{Actor: "Me", Reaction: "❤"}},
		MediaRefs:         []model.MediaRef{{URI: "media/a.jpg"}},
	}
	if err := s.WriteMessages(ctx, []model.Message{msg}); err != nil {
		t.Fatalf("WriteMessages: %v", err)
	}

	got, err := s.ConversationMessages(ctx, "Alice")
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0].Content != "hello" || len(got[0].Reactions) != 1 || len(got[0].MediaRefs) != 1 {
		t.Errorf("message = %+v", got[0])
	}
	if !got[0].Timestamp.Equal(msg.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, msg.Timestamp)
	}
}

func TestMediaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := model.MediaMetadata{
		URI:         "media/direct/a.jpg",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Kind:        model.MediaPhoto,
		ContentType: "image/jpeg",
		StorageKey:  "blobs/abc",
	}
	if err := s.WriteMedia(ctx, []model.MediaMetadata{m}); err != nil {
		t.Fatalf("WriteMedia: %v", err)
	}

	got, err := s.Media(ctx, m.URI)
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if got == nil {
		t.Fatal("Media returned nil for a stored URI")
	}
	if got.ContentType != "image/jpeg" || got.StorageKey != "blobs/abc" || got.Kind != model.MediaPhoto {
		t.Errorf("media = %+v", got)
	}
	if !got.Timestamp.Equal(m.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, m.Timestamp)
	}

	missing, err := s.Media(ctx, "media/none.jpg")
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if missing != nil {
		t.Errorf("Media for unknown URI = %+v, want nil", missing)
	}

	// Re-importing the same URI replaces the row.
	m.StorageKey = "blobs/def"
	if err := s.WriteMedia(ctx, []model.MediaMetadata{m}); err != nil {
		t.Fatalf("WriteMedia upsert: %v", err)
	}
	got, err = s.Media(ctx, m.URI)
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if got.StorageKey != "blobs/def" {
		t.Errorf("storage key after upsert = %q, want %q", got.StorageKey, "blobs/def")
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := model.Profile{
		Username:            "testuser",
		Name:                "Test User",
		PrivateAccount:      true,
		BasedIn:             "Berlin",
		LocationsOfInterest: []string{"Berlin", "Hamburg"},
		PostsViewed:         7,
		PhotoStorageKey:     "media_other_profile.jpg",
	}
	changes := []model.ProfileChange{
		{Changed: "Name", PreviousValue: "old", NewValue: "new", Timestamp: time.Unix(1700000000, 0)},
	}
	if err := s.WriteProfile(ctx, p, changes); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}

	got, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got == nil {
		t.Fatal("Profile returned nil after write")
	}
	if got.Username != "testuser" || !got.PrivateAccount || got.PostsViewed != 7 {
		t.Errorf("profile = %+v", got)
	}
	if len(got.LocationsOfInterest) != 2 {
		t.Errorf("locations = %v", got.LocationsOfInterest)
	}

	// The profile row is a singleton; a second write replaces it.
	p.Username = "renamed"
	if err := s.WriteProfile(ctx, p, nil); err != nil {
		t.Fatalf("WriteProfile again: %v", err)
	}
	got, err = s.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got.Username != "renamed" {
		t.Errorf("username = %q after replace", got.Username)
	}
}

func TestProfileAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got != nil {
		t.Errorf("Profile on empty store = %+v, want nil", got)
	}
}

func TestResetPreservesRunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.WriteUsers(ctx, []model.User{{Username: "alice"}}); err != nil {
		t.Fatalf("WriteUsers: %v", err)
	}
	if err := s.WriteContent(ctx, []model.Post{{Title: "p", Timestamp: time.Now()}}, nil); err != nil {
		t.Fatalf("WriteContent: %v", err)
	}
	if err := s.CreateImportRun(ctx, "run-1", time.Unix(1700000000, 0), "/tmp/export.zip"); err != nil {
		t.Fatalf("CreateImportRun: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Users != 0 || st.Posts != 0 {
		t.Errorf("entities should be gone after reset: %+v", st)
	}
	runs, err := s.ListImportRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListImportRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("run history should survive reset, got %d runs", len(runs))
	}
}

func TestImportRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Unix(1700000000, 0).UTC()
	if err := s.CreateImportRun(ctx, "run-1", start, "/tmp/export.zip"); err != nil {
		t.Fatalf("CreateImportRun: %v", err)
	}
	runs, err := s.ListImportRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListImportRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != RunRunning || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("running run = %+v", runs)
	}

	end := start.Add(time.Minute)
	if err := s.FinishImportRun(ctx, "run-1", RunSucceeded, end, 42, 1024, ""); err != nil {
		t.Fatalf("FinishImportRun: %v", err)
	}
	runs, err = s.ListImportRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListImportRuns: %v", err)
	}
	r := runs[0]
	if r.Status != RunSucceeded || !r.FinishedAt.Equal(end) || r.Entries != 42 || r.Bytes != 1024 {
		t.Errorf("finished run = %+v", r)
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetSetting(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("GetSetting(missing) = %q, %v", v, err)
	}
	if err := s.SetSetting(ctx, "last_run", "run-1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, "last_run", "run-2"); err != nil {
		t.Fatalf("SetSetting replace: %v", err)
	}
	v, err = s.GetSetting(ctx, "last_run")
	if err != nil || v != "run-2" {
		t.Errorf("GetSetting = %q, %v; want run-2", v, err)
	}
}
