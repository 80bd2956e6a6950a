package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"igarchive/internal/model"
)

// Structured columns (participants, reactions, media references) are stored as
// JSON text. SQLite has no array type and nothing queries inside them.

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding column: %w", err)
	}
	return string(b), nil
}

// WriteUsers replaces the user table's contents in one transaction.
func (s *Store) WriteUsers(ctx context.Context, users []model.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users (
			username, blocked_at, close_friend_at, requested_to_follow_at,
			follower_at, following_at, hidden_story_from_at,
			pending_follow_request_at, recently_unfollowed_at, stories_liked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			blocked_at = excluded.blocked_at,
			close_friend_at = excluded.close_friend_at,
			requested_to_follow_at = excluded.requested_to_follow_at,
			follower_at = excluded.follower_at,
			following_at = excluded.following_at,
			hidden_story_from_at = excluded.hidden_story_from_at,
			pending_follow_request_at = excluded.pending_follow_request_at,
			recently_unfollowed_at = excluded.recently_unfollowed_at,
			stories_liked = excluded.stories_liked`)
	if err != nil {
		return fmt.Errorf("preparing user insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		_, err := stmt.ExecContext(ctx, u.Username,
			flagTime(u.Blocked), flagTime(u.CloseFriend), flagTime(u.RequestedToFollow),
			flagTime(u.Follower), flagTime(u.Following), flagTime(u.HiddenStoryFrom),
			flagTime(u.PendingFollowReq), flagTime(u.RecentlyUnfollowed), u.StoriesLiked)
		if err != nil {
			return fmt.Errorf("inserting user %q: %w", u.Username, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// WriteConversations writes conversations in one transaction. Conversations
// must land before their messages; the messages table references them.
func (s *Store) WriteConversations(ctx context.Context, conversations []model.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO conversations (title, participants, is_group)
		VALUES (?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			participants = excluded.participants,
			is_group = excluded.is_group`)
	if err != nil {
		return fmt.Errorf("preparing conversation insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range conversations {
		participants, err := encodeJSON(c.Participants)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.Title, participants, c.IsGroup); err != nil {
			return fmt.Errorf("inserting conversation %q: %w", c.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// WriteMessages appends messages in one transaction.
func (s *Store) WriteMessages(ctx context.Context, messages []model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages (
			conversation_title, sender_name, timestamp, content, is_system,
			reactions, share_link, share_text, share_owner, media_refs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		reactions, err := encodeJSON(m.Reactions)
		if err != nil {
			return err
		}
		refs, err := encodeJSON(m.MediaRefs)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, m.ConversationTitle, m.SenderName,
			m.Timestamp.UnixMilli(), m.Content, m.IsSystemMessage,
			reactions, m.ShareLink, m.ShareText, m.ShareOwner, refs)
		if err != nil {
			return fmt.Errorf("inserting message in %q: %w", m.ConversationTitle, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// WriteMedia upserts media metadata keyed by URI.
func (s *Store) WriteMedia(ctx context.Context, media []model.MediaMetadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO media (uri, timestamp, kind, content_type, storage_key)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			timestamp = excluded.timestamp,
			kind = excluded.kind,
			content_type = excluded.content_type,
			storage_key = excluded.storage_key`)
	if err != nil {
		return fmt.Errorf("preparing media insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range media {
		if _, err := stmt.ExecContext(ctx, m.URI, m.Timestamp.Unix(), string(m.Kind), m.ContentType, m.StorageKey); err != nil {
			return fmt.Errorf("inserting media %q: %w", m.URI, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// WriteContent writes posts and stories in one transaction.
func (s *Store) WriteContent(ctx context.Context, posts []model.Post, stories []model.Story) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range posts {
		uris, err := encodeJSON(p.MediaURIs)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO posts (title, timestamp, media_uris, archived)
			VALUES (?, ?, ?, ?)`, p.Title, p.Timestamp.Unix(), uris, p.Archived)
		if err != nil {
			return fmt.Errorf("inserting post %q: %w", p.Title, err)
		}
	}
	for _, st := range stories {
		_, err := tx.ExecContext(ctx, `INSERT INTO stories (title, timestamp, uri)
			VALUES (?, ?, ?)`, st.Title, st.Timestamp.Unix(), st.URI)
		if err != nil {
			return fmt.Errorf("inserting story %q: %w", st.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// WriteInteractions writes likes, saves and comments in one transaction.
func (s *Store) WriteInteractions(ctx context.Context, liked []model.LikedPost, saved []model.SavedPost, comments []model.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range liked {
		_, err := tx.ExecContext(ctx, `INSERT INTO liked_posts (media_owner, href, timestamp)
			VALUES (?, ?, ?)`, l.MediaOwner, l.Href, l.Timestamp.Unix())
		if err != nil {
			return fmt.Errorf("inserting liked post: %w", err)
		}
	}
	for _, sv := range saved {
		_, err := tx.ExecContext(ctx, `INSERT INTO saved_posts (media_owner, href, timestamp)
			VALUES (?, ?, ?)`, sv.MediaOwner, sv.Href, sv.Timestamp.Unix())
		if err != nil {
			return fmt.Errorf("inserting saved post: %w", err)
		}
	}
	for _, c := range comments {
		_, err := tx.ExecContext(ctx, `INSERT INTO comments (media_owner, comment, timestamp)
			VALUES (?, ?, ?)`, c.MediaOwner, c.Comment, c.Timestamp.Unix())
		if err != nil {
			return fmt.Errorf("inserting comment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// WriteProfile writes the singleton profile row and its change history in one
// transaction.
func (s *Store) WriteProfile(ctx context.Context, p model.Profile, changes []model.ProfileChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	locations, err := encodeJSON(p.LocationsOfInterest)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO profile (
			id, username, name, email, bio, gender, private_account,
			date_of_birth, based_in, locations_of_interest,
			posts_viewed, videos_watched, ads_viewed,
			not_interested_posts, not_interested_users, photo_storage_key
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			name = excluded.name,
			email = excluded.email,
			bio = excluded.bio,
			gender = excluded.gender,
			private_account = excluded.private_account,
			date_of_birth = excluded.date_of_birth,
			based_in = excluded.based_in,
			locations_of_interest = excluded.locations_of_interest,
			posts_viewed = excluded.posts_viewed,
			videos_watched = excluded.videos_watched,
			ads_viewed = excluded.ads_viewed,
			not_interested_posts = excluded.not_interested_posts,
			not_interested_users = excluded.not_interested_users,
			photo_storage_key = excluded.photo_storage_key`,
		p.Username, p.Name, p.Email, p.Bio, p.Gender, p.PrivateAccount,
		p.DateOfBirth, p.BasedIn, locations,
		p.PostsViewed, p.VideosWatched, p.AdsViewed,
		p.NotInterestedPosts, p.NotInterestedUsers, p.PhotoStorageKey)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}

	for _, ch := range changes {
		_, err := tx.ExecContext(ctx, `INSERT INTO profile_changes (changed, previous_value, new_value, timestamp)
			VALUES (?, ?, ?, ?)`, ch.Changed, ch.PreviousValue, ch.NewValue, ch.Timestamp.Unix())
		if err != nil {
			return fmt.Errorf("inserting profile change: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
