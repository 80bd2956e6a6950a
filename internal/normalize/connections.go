package normalize

import (
	"context"
	"log/slog"
	"sort"

	"github.com/goccy/go-json"

	"igarchive/internal/archive"
	"igarchive/internal/model"
	"igarchive/internal/progress"
)

const connectionsDir = "connections/followers_and_following/"

// relationshipSource describes one relationship document: where it lives,
// which key (if any) wraps its record array, and which flag an occurrence
// sets on the user.
type relationshipSource struct {
	file   string
	unwrap string
	assign func(*model.User, *model.Flag)
}

var relationshipSources = []relationshipSource{
	{"blocked_profiles.json", "relationships_blocked_users", func(u *model.User, f *model.Flag) { u.Blocked = f }},
	{"close_friends.json", "relationships_close_friends", func(u *model.User, f *model.Flag) { u.CloseFriend = f }},
	{"followers_1.json", "", func(u *model.User, f *model.Flag) { u.Follower = f }},
	{"following.json", "relationships_following", func(u *model.User, f *model.Flag) { u.Following = f }},
	{"follow_requests_you've_received.json", "relationships_follow_requests_received", func(u *model.User, f *model.Flag) { u.RequestedToFollow = f }},
	{"hide_story_from.json", "relationships_hide_stories_from", func(u *model.User, f *model.Flag) { u.HiddenStoryFrom = f }},
	{"pending_follow_requests.json", "relationships_follow_requests_sent", func(u *model.User, f *model.Flag) { u.PendingFollowReq = f }},
	{"recently_unfollowed_profiles.json", "relationships_unfollowed_users", func(u *model.User, f *model.Flag) { u.RecentlyUnfollowed = f }},
}

const storyLikesFile = "your_instagram_activity/story_interactions/story_likes.json"

// Users builds the unified user table from the relationship documents and the
// story-likes activity log. The same account appearing in several documents
// merges into one user carrying every observed flag. Story likes are keyed by
// display name the way the exporter records them; unknown names create users
// on the fly.
func Users(ctx context.Context, idx *archive.Index, logger *slog.Logger, rep *progress.Reporter) ([]model.User, error) {
	users := make(map[string]*model.User)
	lookup := func(name string) *model.User {
		u, ok := users[name]
		if !ok {
			u = &model.User{Username: name}
			users[name] = u
		}
		return u
	}

	steps := len(relationshipSources) + 1
	for i, src := range relationshipSources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := loadRelationshipRecords(idx, connectionsDir+src.file, src.unwrap)
		if err != nil {
			logger.Warn("skipping malformed relationship document", "file", src.file, "error", err)
			continue
		}
		for _, rec := range records {
			if len(rec.StringListData) == 0 {
				continue
			}
			item := rec.StringListData[0]
			name := item.identifier()
			if name == "" {
				logger.Warn("relationship record has no resolvable identifier", "file", src.file)
				continue
			}
			src.assign(lookup(name), &model.Flag{ObservedAt: unixSeconds(item.Timestamp)})
		}
		rep.Report(float64(i+1)/float64(steps)*100, "reading "+src.file)
	}

	if err := applyStoryLikes(idx, lookup); err != nil {
		logger.Warn("skipping malformed story likes document", "error", err)
	}
	rep.Done("users merged")

	out := make([]model.User, 0, len(users))
	for _, u := range users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// loadRelationshipRecords decodes a relationship document into its record
// array. An empty unwrap key means the document is a bare array; otherwise
// the array sits under that key. A missing document yields nil records.
func loadRelationshipRecords(idx *archive.Index, suffix, unwrap string) ([]stringListRecord, error) {
	if unwrap == "" {
		var records []stringListRecord
		if ok, err := idx.LoadJSON(suffix, &records); !ok || err != nil {
			return nil, err
		}
		return records, nil
	}
	var doc map[string]json.RawMessage
	if ok, err := idx.LoadJSON(suffix, &doc); !ok || err != nil {
		return nil, err
	}
	raw, ok := doc[unwrap]
	if !ok {
		return nil, nil
	}
	var records []stringListRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// applyStoryLikes counts per-user story likes. Each record's title carries
// the liked account's display name.
func applyStoryLikes(idx *archive.Index, lookup func(string) *model.User) error {
	var doc struct {
		Likes []stringListRecord `json:"story_activities_story_likes"`
	}
	if ok, err := idx.LoadJSON(storyLikesFile, &doc); !ok || err != nil {
		return err
	}
	for _, rec := range doc.Likes {
		if rec.Title == "" {
			continue
		}
		lookup(rec.Title).StoriesLiked++
	}
	return nil
}
