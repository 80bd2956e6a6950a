package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"igarchive/internal/model"
)

// Profile loads the singleton profile row. Returns nil when no import has
// written one yet.
func (s *Store) Profile(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	var locations string
	err := s.db.QueryRowContext(ctx, `SELECT username, name, email, bio, gender,
			private_account, date_of_birth, based_in, locations_of_interest,
			posts_viewed, videos_watched, ads_viewed,
			not_interested_posts, not_interested_users, photo_storage_key
		FROM profile WHERE id = 1`).Scan(
		&p.Username, &p.Name, &p.Email, &p.Bio, &p.Gender,
		&p.PrivateAccount, &p.DateOfBirth, &p.BasedIn, &locations,
		&p.PostsViewed, &p.VideosWatched, &p.AdsViewed,
		&p.NotInterestedPosts, &p.NotInterestedUsers, &p.PhotoStorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if err := json.Unmarshal([]byte(locations), &p.LocationsOfInterest); err != nil {
		return nil, fmt.Errorf("decoding locations of interest: %w", err)
	}
	return &p, nil
}

// Media looks up stored media metadata by its archive URI. Returns nil when
// the URI was never imported.
func (s *Store) Media(ctx context.Context, uri string) (*model.MediaMetadata, error) {
	var m model.MediaMetadata
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT uri, timestamp, kind, content_type, storage_key
		FROM media WHERE uri = ?`, uri).Scan(&m.URI, &ts, &m.Kind, &m.ContentType, &m.StorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading media %q: %w", uri, err)
	}
	m.Timestamp = time.Unix(ts, 0).UTC()
	return &m, nil
}

// Users loads every user ordered by username.
func (s *Store) Users(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, blocked_at, close_friend_at,
			requested_to_follow_at, follower_at, following_at, hidden_story_from_at,
			pending_follow_request_at, recently_unfollowed_at, stories_liked
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var blocked, closeFriend, requested, follower, following, hidden, pending, unfollowed sql.NullInt64
		err := rows.Scan(&u.Username, &blocked, &closeFriend, &requested,
			&follower, &following, &hidden, &pending, &unfollowed, &u.StoriesLiked)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Blocked = flagFromNull(blocked)
		u.CloseFriend = flagFromNull(closeFriend)
		u.RequestedToFollow = flagFromNull(requested)
		u.Follower = flagFromNull(follower)
		u.Following = flagFromNull(following)
		u.HiddenStoryFrom = flagFromNull(hidden)
		u.PendingFollowReq = flagFromNull(pending)
		u.RecentlyUnfollowed = flagFromNull(unfollowed)
		users = append(users, u)
	}
	return users, rows.Err()
}

// ConversationMessages loads a conversation's messages ordered by timestamp.
func (s *Store) ConversationMessages(ctx context.Context, title string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversation_title, sender_name, timestamp,
			content, is_system, reactions, share_link, share_text, share_owner, media_refs
		FROM messages WHERE conversation_title = ? ORDER BY timestamp`, title)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var ts int64
		var reactions, refs string
		err := rows.Scan(&m.ConversationTitle, &m.SenderName, &ts, &m.Content,
			&m.IsSystemMessage, &reactions, &m.ShareLink, &m.ShareText, &m.ShareOwner, &refs)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(reactions), &m.Reactions); err != nil {
			return nil, fmt.Errorf("decoding reactions: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &m.MediaRefs); err != nil {
			return nil, fmt.Errorf("decoding media references: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
