package model

import "time"

// MediaKind classifies a binary media blob.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Flag is a boolean relationship indicator with the time it was observed.
// A nil *Flag on a User means the source document never mentioned the user.
type Flag struct {
	ObservedAt time.Time
}

// User is the per-username relationship aggregate. Usernames are unique across
// one ingestion run. Each of the eight relationship source documents contributes
// at most one flag; StoriesLiked is filled by a separate pass and a record with
// only a counter and no flags is valid.
type User struct {
	Username           string
	Blocked            *Flag
	CloseFriend        *Flag
	RequestedToFollow  *Flag // they requested to follow you
	Follower           *Flag
	Following          *Flag
	HiddenStoryFrom    *Flag
	PendingFollowReq   *Flag // you requested to follow them
	RecentlyUnfollowed *Flag
	StoriesLiked       int
}

// Conversation is keyed by title; a recurring title is last-write-wins.
type Conversation struct {
	Title        string
	Participants []string
	IsGroup      bool
}

// Reaction is one reaction attached to a message.
type Reaction struct {
	Actor    string
	Reaction string
}

// MediaRef points at a media file by its URI inside the archive. The referenced
// entry may be absent from the archive; the message still carries the reference.
type MediaRef struct {
	URI       string
	Timestamp time.Time
}

// Message is one message within a conversation. ConversationTitle always
// references a Conversation produced in the same run.
type Message struct {
	ConversationTitle string
	SenderName        string
	Timestamp         time.Time
	Content           string
	IsSystemMessage   bool
	Reactions         []Reaction
	ShareLink         string
	ShareText         string
	ShareOwner        string
	MediaRefs         []MediaRef
}

// MediaMetadata records a media blob that was actually found in the archive and
// stored. StorageKey is an opaque handle into the blob store, not raw bytes.
type MediaMetadata struct {
	URI         string
	Timestamp   time.Time
	Kind        MediaKind
	ContentType string
	StorageKey  string
}

// Post is a published or archived post.
type Post struct {
	Title     string
	Timestamp time.Time
	MediaURIs []string
	Archived  bool
}

// Story is a single published story.
type Story struct {
	Title     string
	Timestamp time.Time
	URI       string
}

// Comment is a comment the account left on someone's post.
type Comment struct {
	MediaOwner string
	Comment    string
	Timestamp  time.Time
}

// LikedPost records a post the account liked.
type LikedPost struct {
	MediaOwner string
	Href       string
	Timestamp  time.Time
}

// SavedPost records a post the account saved.
type SavedPost struct {
	MediaOwner string
	Href       string
	Timestamp  time.Time
}

// Profile is the account owner's own identity document plus activity counters
// derived from the optional ad-activity documents (zero when absent).
type Profile struct {
	Username            string
	Name                string
	Email               string
	Bio                 string
	Gender              string
	PrivateAccount      bool
	DateOfBirth         string
	BasedIn             string
	LocationsOfInterest []string
	PostsViewed         int
	VideosWatched       int
	AdsViewed           int
	NotInterestedPosts  int
	NotInterestedUsers  int
	PhotoStorageKey     string
}

// ProfileChange is one historical edit to the profile.
type ProfileChange struct {
	Changed       string
	PreviousValue string
	NewValue      string
	Timestamp     time.Time
}
