package normalize

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"igarchive/internal/archive"
	"igarchive/internal/blob"
	"igarchive/internal/model"
	"igarchive/internal/mojibake"
	"igarchive/internal/progress"
)

// messageConcurrency bounds how many conversation documents are normalized at
// once. Results are applied in sorted path order afterwards so the merged
// output does not depend on goroutine scheduling.
const messageConcurrency = 8

var messageDocPattern = regexp.MustCompile(`message_\d+\.json$`)

// rawMessageDoc mirrors one per-conversation message document. Fields the
// exporter emits but the pipeline never uses (geoblocking markers, kid
// inheritor flags) are simply not decoded.
type rawMessageDoc struct {
	Title        string `json:"title"`
	Participants []struct {
		Name string `json:"name"`
	} `json:"participants"`
	Messages []rawMessage `json:"messages"`
}

type rawMessage struct {
	SenderName  string `json:"sender_name"`
	TimestampMS int64  `json:"timestamp_ms"`
	Content     string `json:"content"`
	Share       *struct {
		Link                 string `json:"link"`
		ShareText            string `json:"share_text"`
		OriginalContentOwner string `json:"original_content_owner"`
	} `json:"share"`
	Photos     []rawMedia `json:"photos"`
	Videos     []rawMedia `json:"videos"`
	AudioFiles []rawMedia `json:"audio_files"`
	Reactions  []struct {
		Reaction  string `json:"reaction"`
		Actor     string `json:"actor"`
		Timestamp int64  `json:"timestamp"`
	} `json:"reactions"`
}

// System notifications arrive as ordinary messages with recognizable text.
// They are classified, never dropped, so the record stays complete.
//
// TODO: the exporter emits more notification shapes than these (call events,
// group photo changes); extend the set as new ones are confirmed.
var systemMessageExact = map[string]bool{
	"Liked a message": true,
}

var systemMessagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^.+ reacted .+ to your message\.?$`),
	regexp.MustCompile(`^.+ liked a message$`),
	regexp.MustCompile(`^.+ changed the theme to .+\.?$`),
	regexp.MustCompile(`^.+ added .+ to the group\.?$`),
}

func isSystemMessage(content string) bool {
	if systemMessageExact[content] {
		return true
	}
	for _, p := range systemMessagePatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

// MessagesResult aggregates everything the message normalizer produces.
type MessagesResult struct {
	Conversations []model.Conversation
	Messages      []model.Message
	Media         []model.MediaMetadata
}

// conversationResult is the normalized form of a single document.
type conversationResult struct {
	conversation model.Conversation
	messages     []model.Message
	media        []model.MediaMetadata
}

// Messages normalizes every per-conversation message document in the archive.
// Documents are processed concurrently; their results are merged in sorted
// path order, so when two documents describe the same conversation the one
// later in path order wins the conversation metadata while messages from both
// are kept.
func Messages(ctx context.Context, idx *archive.Index, blobs blob.Store, logger *slog.Logger, rep *progress.Reporter) (MessagesResult, error) {
	docs := idx.Filter(func(path string) bool {
		return messageDocPattern.MatchString(path)
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	if len(docs) == 0 {
		rep.Done("no conversations found")
		return MessagesResult{}, nil
	}

	results := make([]*conversationResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(messageConcurrency)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := normalizeConversation(doc, idx, blobs, logger)
			if err != nil {
				logger.Warn("skipping malformed conversation document", "path", doc.Path, "error", err)
				return nil
			}
			results[i] = res
			rep.Report(float64(i+1)/float64(len(docs))*100, fmt.Sprintf("conversation %d of %d", i+1, len(docs)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MessagesResult{}, err
	}

	var out MessagesResult
	conversations := make(map[string]int)
	mediaSeen := make(map[string]bool)
	for _, res := range results {
		if res == nil {
			continue
		}
		if j, ok := conversations[res.conversation.Title]; ok {
			out.Conversations[j] = res.conversation
		} else {
			conversations[res.conversation.Title] = len(out.Conversations)
			out.Conversations = append(out.Conversations, res.conversation)
		}
		out.Messages = append(out.Messages, res.messages...)
		for _, m := range res.media {
			if !mediaSeen[m.URI] {
				mediaSeen[m.URI] = true
				out.Media = append(out.Media, m)
			}
		}
	}
	rep.Done(fmt.Sprintf("%d conversations, %d messages", len(out.Conversations), len(out.Messages)))
	return out, nil
}

func normalizeConversation(entry *archive.Entry, idx *archive.Index, blobs blob.Store, logger *slog.Logger) (*conversationResult, error) {
	var doc rawMessageDoc
	if err := json.Unmarshal(entry.Data, &doc); err != nil {
		return nil, err
	}

	// Sender and participant names repeat thousands of times per document;
	// repair each distinct name once.
	names := make(map[string]string)
	repairName := func(s string) string {
		if r, ok := names[s]; ok {
			return r
		}
		r := mojibake.Repair(s)
		names[s] = r
		return r
	}

	conv := model.Conversation{
		Title:   mojibake.Repair(doc.Title),
		IsGroup: len(doc.Participants) > 2,
	}
	for _, p := range doc.Participants {
		conv.Participants = append(conv.Participants, repairName(p.Name))
	}

	res := &conversationResult{conversation: conv}
	for _, raw := range doc.Messages {
		msg := model.Message{
			ConversationTitle: conv.Title,
			SenderName:        repairName(raw.SenderName),
			Timestamp:         unixMillis(raw.TimestampMS),
			Content:           mojibake.Repair(raw.Content),
		}
		msg.IsSystemMessage = isSystemMessage(msg.Content)
		if raw.Share != nil {
			msg.ShareLink = raw.Share.Link
			msg.ShareText = mojibake.Repair(raw.Share.ShareText)
			msg.ShareOwner = raw.Share.OriginalContentOwner
		}
		for _, r := range raw.Reactions {
			msg.Reactions = append(msg.Reactions, model.Reaction{
				Actor:    repairName(r.Actor),
				Reaction: mojibake.Repair(r.Reaction),
			})
		}
		for _, set := range []struct {
			list []rawMedia
			kind model.MediaKind
		}{
			{raw.Photos, model.MediaPhoto},
			{raw.Videos, model.MediaVideo},
			{raw.AudioFiles, model.MediaAudio},
		} {
			for _, m := range set.list {
				ts := unixSeconds(m.CreationTimestamp)
				msg.MediaRefs = append(msg.MediaRefs, model.MediaRef{URI: m.URI, Timestamp: ts})
				meta, ok := resolveMedia(idx, blobs, m.URI, ts, set.kind, logger)
				if ok {
					res.media = append(res.media, meta)
				}
			}
		}
		res.messages = append(res.messages, msg)
	}
	return res, nil
}

// resolveMedia looks up a referenced media file in the archive and stores its
// bytes in the blob store. A dangling reference is logged and skipped; the
// message keeps its MediaRef either way.
func resolveMedia(idx *archive.Index, blobs blob.Store, uri string, ts time.Time, kind model.MediaKind, logger *slog.Logger) (model.MediaMetadata, bool) {
	if uri == "" || strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return model.MediaMetadata{}, false
	}
	entry, ok := idx.Find(uri)
	if !ok {
		logger.Warn("media file referenced but not present in archive", "uri", uri)
		return model.MediaMetadata{}, false
	}
	key, err := blobs.Put(uri, ts, kind, bytes.NewReader(entry.Data))
	if err != nil {
		logger.Warn("storing media file failed", "uri", uri, "error", err)
		return model.MediaMetadata{}, false
	}
	return model.MediaMetadata{
		URI:         uri,
		Timestamp:   ts,
		Kind:        kind,
		ContentType: contentTypeForURI(uri),
		StorageKey:  key,
	}, true
}
