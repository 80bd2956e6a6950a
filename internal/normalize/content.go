package normalize

import (
	"context"
	"fmt"
	"log/slog"

	"igarchive/internal/archive"
	"igarchive/internal/blob"
	"igarchive/internal/model"
	"igarchive/internal/mojibake"
	"igarchive/internal/progress"
)

const (
	postsFile         = "your_instagram_activity/media/posts_1.json"
	archivedPostsFile = "your_instagram_activity/media/archived_posts.json"
	storiesFile       = "your_instagram_activity/media/stories.json"
)

// rawPost mirrors one entry of the posts documents.
type rawPost struct {
	Title             string     `json:"title"`
	CreationTimestamp int64      `json:"creation_timestamp"`
	Media             []rawMedia `json:"media"`
}

// ContentResult aggregates the account's own published content.
type ContentResult struct {
	Posts   []model.Post
	Stories []model.Story
	Media   []model.MediaMetadata
}

// Content normalizes posts, archived posts and stories. All three documents
// are optional; an album post carries several media files. Single-media posts
// with an empty title inherit the media item's own title, which the exporter
// uses for captions on non-album posts.
func Content(ctx context.Context, idx *archive.Index, blobs blob.Store, logger *slog.Logger, rep *progress.Reporter) (ContentResult, error) {
	var out ContentResult
	seen := make(map[string]bool)
	keep := func(m model.MediaMetadata, ok bool) {
		if ok && !seen[m.URI] {
			seen[m.URI] = true
			out.Media = append(out.Media, m)
		}
	}

	var posts []rawPost
	if _, err := idx.LoadJSON(postsFile, &posts); err != nil {
		logger.Warn("skipping malformed posts document", "error", err)
		posts = nil
	}
	rep.Report(10, "reading posts")
	for i, p := range posts {
		if err := ctx.Err(); err != nil {
			return ContentResult{}, err
		}
		out.Posts = append(out.Posts, normalizePost(p, false, idx, blobs, logger, keep))
		rep.Report(10+float64(i+1)/float64(len(posts))*40, fmt.Sprintf("post %d of %d", i+1, len(posts)))
	}

	var archived struct {
		Posts []rawPost `json:"ig_archived_post_media"`
	}
	if _, err := idx.LoadJSON(archivedPostsFile, &archived); err != nil {
		logger.Warn("skipping malformed archived posts document", "error", err)
		archived.Posts = nil
	}
	for _, p := range archived.Posts {
		if err := ctx.Err(); err != nil {
			return ContentResult{}, err
		}
		out.Posts = append(out.Posts, normalizePost(p, true, idx, blobs, logger, keep))
	}
	rep.Report(70, "reading archived posts")

	var stories struct {
		Stories []struct {
			Title             string `json:"title"`
			URI               string `json:"uri"`
			CreationTimestamp int64  `json:"creation_timestamp"`
		} `json:"ig_stories"`
	}
	if _, err := idx.LoadJSON(storiesFile, &stories); err != nil {
		logger.Warn("skipping malformed stories document", "error", err)
		stories.Stories = nil
	}
	for _, s := range stories.Stories {
		if err := ctx.Err(); err != nil {
			return ContentResult{}, err
		}
		title := s.Title
		if title == "" {
			title = "Placeholder"
		}
		ts := unixSeconds(s.CreationTimestamp)
		out.Stories = append(out.Stories, model.Story{
			Title:     mojibake.Repair(title),
			Timestamp: ts,
			URI:       s.URI,
		})
		keep(resolveMedia(idx, blobs, s.URI, ts, kindForURI(s.URI), logger))
	}
	rep.Done(fmt.Sprintf("%d posts, %d stories", len(out.Posts), len(out.Stories)))
	return out, nil
}

func normalizePost(p rawPost, isArchived bool, idx *archive.Index, blobs blob.Store, logger *slog.Logger, keep func(model.MediaMetadata, bool)) model.Post {
	title := p.Title
	ts := p.CreationTimestamp
	if len(p.Media) == 1 {
		if title == "" {
			title = p.Media[0].Title
		}
		if ts == 0 {
			ts = p.Media[0].CreationTimestamp
		}
	}
	post := model.Post{
		Title:     mojibake.Repair(title),
		Timestamp: unixSeconds(ts),
		Archived:  isArchived,
	}
	for _, m := range p.Media {
		post.MediaURIs = append(post.MediaURIs, m.URI)
		mts := unixSeconds(m.CreationTimestamp)
		if mts.IsZero() {
			mts = post.Timestamp
		}
		keep(resolveMedia(idx, blobs, m.URI, mts, kindForURI(m.URI), logger))
	}
	return post
}
