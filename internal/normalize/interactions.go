package normalize

import (
	"context"
	"fmt"
	"log/slog"

	"igarchive/internal/archive"
	"igarchive/internal/model"
	"igarchive/internal/mojibake"
	"igarchive/internal/progress"
)

const (
	likedPostsFile   = "your_instagram_activity/likes/liked_posts.json"
	savedPostsFile   = "your_instagram_activity/saved/saved_posts.json"
	postCommentsFile = "your_instagram_activity/comments/post_comments_1.json"
)

// InteractionsResult aggregates the account's engagement with other accounts'
// content.
type InteractionsResult struct {
	Liked    []model.LikedPost
	Saved    []model.SavedPost
	Comments []model.Comment
}

// Interactions normalizes liked posts, saved posts and the account's own
// comments. All three documents are optional and records missing their
// required fields are skipped individually.
func Interactions(ctx context.Context, idx *archive.Index, logger *slog.Logger, rep *progress.Reporter) (InteractionsResult, error) {
	var out InteractionsResult

	var liked struct {
		Likes []stringListRecord `json:"likes_media_likes"`
	}
	if _, err := idx.LoadJSON(likedPostsFile, &liked); err != nil {
		logger.Warn("skipping malformed liked posts document", "error", err)
		liked.Likes = nil
	}
	for _, rec := range liked.Likes {
		if len(rec.StringListData) == 0 {
			continue
		}
		item := rec.StringListData[0]
		out.Liked = append(out.Liked, model.LikedPost{
			MediaOwner: rec.Title,
			Href:       item.Href,
			Timestamp:  unixSeconds(item.Timestamp),
		})
	}
	rep.Report(33, "reading liked posts")
	if err := ctx.Err(); err != nil {
		return InteractionsResult{}, err
	}

	var saved struct {
		Saves []struct {
			Title         string                    `json:"title"`
			StringMapData map[string]stringMapValue `json:"string_map_data"`
		} `json:"saved_saved_media"`
	}
	if _, err := idx.LoadJSON(savedPostsFile, &saved); err != nil {
		logger.Warn("skipping malformed saved posts document", "error", err)
		saved.Saves = nil
	}
	for _, rec := range saved.Saves {
		on, ok := rec.StringMapData["Saved on"]
		if !ok {
			logger.Warn("saved post record missing its save entry", "owner", rec.Title)
			continue
		}
		out.Saved = append(out.Saved, model.SavedPost{
			MediaOwner: rec.Title,
			Href:       on.Href,
			Timestamp:  unixSeconds(on.Timestamp),
		})
	}
	rep.Report(66, "reading saved posts")
	if err := ctx.Err(); err != nil {
		return InteractionsResult{}, err
	}

	var comments []struct {
		StringMapData map[string]stringMapValue `json:"string_map_data"`
	}
	if _, err := idx.LoadJSON(postCommentsFile, &comments); err != nil {
		logger.Warn("skipping malformed comments document", "error", err)
		comments = nil
	}
	for _, rec := range comments {
		text, ok := rec.StringMapData["Comment"]
		if !ok {
			logger.Warn("comment record missing its text")
			continue
		}
		out.Comments = append(out.Comments, model.Comment{
			MediaOwner: rec.StringMapData["Media Owner"].Value,
			Comment:    mojibake.Repair(text.Value),
			Timestamp:  unixSeconds(rec.StringMapData["Time"].Timestamp),
		})
	}
	rep.Done(fmt.Sprintf("%d likes, %d saves, %d comments", len(out.Liked), len(out.Saved), len(out.Comments)))
	return out, nil
}
