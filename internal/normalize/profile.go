package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"igarchive/internal/archive"
	"igarchive/internal/blob"
	"igarchive/internal/model"
	"igarchive/internal/mojibake"
	"igarchive/internal/progress"
)

// IdentityFile is the one document every archive must contain. Its absence
// means the input is not a complete export and the whole run is aborted.
const IdentityFile = "personal_information/personal_information.json"

const (
	basedInFile        = "information_about_you/profile_based_in.json"
	locationsFile      = "information_about_you/locations_of_interest.json"
	profileChangesFile = "personal_information/profile_changes.json"
)

// ErrMissingIdentity reports an archive without the account identity document.
var ErrMissingIdentity = errors.New("archive has no " + IdentityFile)

// adActivityCounters maps each optional ad-activity document to the profile
// counter its record count fills.
var adActivityCounters = []struct {
	file   string
	unwrap string
	assign func(*model.Profile, int)
}{
	{"ads_information/ads_and_topics/posts_viewed.json", "impressions_history_posts_seen", func(p *model.Profile, n int) { p.PostsViewed = n }},
	{"ads_information/ads_and_topics/videos_watched.json", "impressions_history_videos_watched", func(p *model.Profile, n int) { p.VideosWatched = n }},
	{"ads_information/ads_and_topics/ads_viewed.json", "impressions_history_ads_seen", func(p *model.Profile, n int) { p.AdsViewed = n }},
	{"ads_information/ads_and_topics/posts_you're_not_interested_in.json", "impressions_history_posts_not_interested", func(p *model.Profile, n int) { p.NotInterestedPosts = n }},
	{"ads_information/ads_and_topics/profiles_you're_not_interested_in.json", "impressions_history_recs_hidden_authors", func(p *model.Profile, n int) { p.NotInterestedUsers = n }},
}

// ProfileResult carries the account owner's identity, its edit history and the
// profile photo's stored blob.
type ProfileResult struct {
	Profile model.Profile
	Changes []model.ProfileChange
	Media   []model.MediaMetadata
}

// Profile normalizes the account identity document plus the optional
// location, ad-activity and change-history documents around it.
func Profile(ctx context.Context, idx *archive.Index, blobs blob.Store, logger *slog.Logger, rep *progress.Reporter) (ProfileResult, error) {
	var identity struct {
		ProfileUser []struct {
			StringMapData map[string]stringMapValue `json:"string_map_data"`
			MediaMapData  map[string]struct {
				URI               string `json:"uri"`
				CreationTimestamp int64  `json:"creation_timestamp"`
			} `json:"media_map_data"`
		} `json:"profile_user"`
	}
	ok, err := idx.LoadJSON(IdentityFile, &identity)
	if err != nil {
		return ProfileResult{}, err
	}
	if !ok || len(identity.ProfileUser) == 0 {
		return ProfileResult{}, ErrMissingIdentity
	}
	rep.Report(20, "reading identity")

	user := identity.ProfileUser[0]
	fields := user.StringMapData
	var out ProfileResult
	out.Profile = model.Profile{
		Username:       fields["Username"].Value,
		Name:           mojibake.Repair(fields["Name"].Value),
		Email:          fields["Email"].Value,
		Bio:            mojibake.Repair(fields["Bio"].Value),
		Gender:         fields["Gender"].Value,
		PrivateAccount: strings.EqualFold(fields["Private Account"].Value, "true"),
		DateOfBirth:    fields["Date of birth"].Value,
	}
	if photo, ok := user.MediaMapData["Profile Photo"]; ok && photo.URI != "" {
		meta, stored := resolveMedia(idx, blobs, photo.URI, unixSeconds(photo.CreationTimestamp), model.MediaPhoto, logger)
		if stored {
			out.Profile.PhotoStorageKey = meta.StorageKey
			out.Media = append(out.Media, meta)
		}
	}
	if err := ctx.Err(); err != nil {
		return ProfileResult{}, err
	}

	var basedIn struct {
		Records []struct {
			StringMapData map[string]stringMapValue `json:"string_map_data"`
		} `json:"inferred_data_primary_location"`
	}
	if _, err := idx.LoadJSON(basedInFile, &basedIn); err != nil {
		logger.Warn("skipping malformed location document", "error", err)
	} else if len(basedIn.Records) > 0 {
		out.Profile.BasedIn = basedIn.Records[0].StringMapData["City Name"].Value
	}

	var locations struct {
		Topics []struct {
			Label string `json:"label"`
			Vec   []struct {
				Value string `json:"value"`
			} `json:"vec"`
		} `json:"label_values"`
	}
	if _, err := idx.LoadJSON(locationsFile, &locations); err != nil {
		logger.Warn("skipping malformed locations of interest document", "error", err)
	}
	for _, topic := range locations.Topics {
		if topic.Label != "Locations of interest" {
			continue
		}
		for _, v := range topic.Vec {
			out.Profile.LocationsOfInterest = append(out.Profile.LocationsOfInterest, v.Value)
		}
	}
	rep.Report(50, "reading locations")

	for _, counter := range adActivityCounters {
		if err := ctx.Err(); err != nil {
			return ProfileResult{}, err
		}
		var doc map[string]json.RawMessage
		if ok, err := idx.LoadJSON(counter.file, &doc); !ok || err != nil {
			if err != nil {
				logger.Warn("skipping malformed activity document", "file", counter.file, "error", err)
			}
			continue
		}
		raw, found := doc[counter.unwrap]
		if !found {
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			logger.Warn("skipping malformed activity document", "file", counter.file, "error", err)
			continue
		}
		counter.assign(&out.Profile, len(records))
	}
	rep.Report(80, "reading activity counters")

	var changes struct {
		Changes []struct {
			StringMapData map[string]stringMapValue `json:"string_map_data"`
		} `json:"profile_profile_change"`
	}
	if _, err := idx.LoadJSON(profileChangesFile, &changes); err != nil {
		logger.Warn("skipping malformed profile changes document", "error", err)
		changes.Changes = nil
	}
	for _, rec := range changes.Changes {
		out.Changes = append(out.Changes, model.ProfileChange{
			Changed:       rec.StringMapData["Changed"].Value,
			PreviousValue: mojibake.Repair(rec.StringMapData["Previous Value"].Value),
			NewValue:      mojibake.Repair(rec.StringMapData["New Value"].Value),
			Timestamp:     unixSeconds(rec.StringMapData["Change Date"].Timestamp),
		})
	}
	rep.Done(fmt.Sprintf("profile %q, %d changes", out.Profile.Username, len(out.Changes)))
	return out, nil
}
