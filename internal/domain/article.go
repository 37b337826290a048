package domain

import (
	"errors"
	"time"
)

// ErrDuplicateURL signals that an article with the same source URL already
// exists; ingestion treats it as "already seen", not as a failure.
var ErrDuplicateURL = errors.New("article url already exists")

// Status enumerates the article lifecycle. An article only ever moves
// forward, except into StatusFailed which is reachable from any
// non-terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusPublishing Status = "publishing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no stage will pick the article up again.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// CanTransition reports whether moving to next honors the lifecycle order.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	order := map[Status]Status{
		StatusPending:    StatusProcessing,
		StatusProcessing: StatusProcessed,
		StatusProcessed:  StatusPublishing,
		StatusPublishing: StatusPublished,
	}
	return order[s] == next
}

// FeedType identifies which configured feed an article came from.
type FeedType string

const (
	FeedMovies  FeedType = "movies"
	FeedTVShows FeedType = "tv-shows"
)

// ProviderFamily maps the feed type to its AI credential family.
func (f FeedType) ProviderFamily() string {
	if f == FeedTVShows {
		return "series"
	}
	return "cinema"
}

// CredentialTier distinguishes primary and backup AI credentials within a
// family.
type CredentialTier string

const (
	TierPrimary CredentialTier = "primary"
	TierBackup  CredentialTier = "backup"
)

// Article is the unit of work flowing through the pipeline.
type Article struct {
	ID              int64
	OriginalURL     string
	OriginalTitle   string
	OriginalContent string

	FinalTitle      string
	FinalContent    string
	MetaDescription string
	FocusKeyword    string
	Category        string
	PrimarySubject  string
	Tags            []string

	WordPressID  int64
	WordPressURL string

	FeaturedImageURL string

	FeedType       FeedType
	Status         Status
	AIUsed         string
	ProcessingTime int // seconds
	ErrorMessage   string

	CreatedAt   time.Time
	ProcessedAt time.Time
	PublishedAt time.Time
}

// Audit log actions.
const (
	ActionAIProcessing     = "AI_PROCESSING"
	ActionWordPressPublish = "WORDPRESS_PUBLISH"
)

// ProcessingLog is an append-only audit record emitted by the stage that
// acted on an article. Never mutated after insert.
type ProcessingLog struct {
	ID        int64
	ArticleID int64
	Action    string
	Message   string
	AIUsed    string
	Success   bool
	CreatedAt time.Time
}

// Rewrite is the validated structured response of the AI provider. All
// fields are required; a response missing any of them is rejected as a
// whole.
type Rewrite struct {
	Title           string
	Content         string
	MetaDescription string
	FocusKeyword    string
	Category        string
	PrimarySubject  string
	Tags            []string
}

// FeedEntry is one item from a polled feed.
type FeedEntry struct {
	Title       string
	Link        string
	ImageURL    string
	PublishedAt time.Time
}

// PostDraft carries everything the CMS needs to create a post.
type PostDraft struct {
	Title           string
	Content         string
	MetaDescription string
	Categories      []int
	Tags            []int
	FeaturedMedia   int64
}

// PublishedPost holds the remote identifiers returned by the CMS.
type PublishedPost struct {
	ID   int64
	Link string
}
