package storage

import "time"

// RunMetadata is the single run-state document for the ingestion pipeline.
// It serves both as the resumption checkpoint for multi-run pagination and as
// an advisory lock against overlapping runs.
//
// This is an advisory lock, not a mutex: the read-then-write of InProgress is
// two separate store operations with no transaction, so two near-simultaneous
// invocations can both pass the check. Correctness under a true race is
// best-effort.
type RunMetadata struct {
	// LastFetchedAt is when the last run started.
	LastFetchedAt time.Time `bson:"lastFetchedAt" json:"last_fetched_at"`
	// NextPageToken is the opaque search continuation cursor. Empty when no
	// pagination is in progress.
	NextPageToken string `bson:"nextPageToken,omitempty" json:"next_page_token,omitempty"`
	// InProgress is the advisory lock flag.
	InProgress bool `bson:"isInProgress" json:"is_in_progress"`
	// LastError is the last failure message. Cleared on success.
	LastError string `bson:"lastError,omitempty" json:"last_error,omitempty"`
	// LastSuccessfulCompleteFetch is when a run last drained pagination to
	// completion.
	LastSuccessfulCompleteFetch time.Time `bson:"lastSuccessfulCompleteFetch,omitempty" json:"last_successful_complete_fetch,omitempty"`
}

// NewRunMetadata returns the default state for a pipeline that has never run.
func NewRunMetadata() *RunMetadata {
	return &RunMetadata{}
}

// Locked reports whether another run holds a fresh lock. A lock older than
// timeout is stale and does not count.
func (m *RunMetadata) Locked(now time.Time, timeout time.Duration) bool {
	if m == nil || !m.InProgress {
		return false
	}
	return now.Sub(m.LastFetchedAt) < timeout
}

// Stale reports whether the lock flag is set but past the timeout.
func (m *RunMetadata) Stale(now time.Time, timeout time.Duration) bool {
	if m == nil || !m.InProgress {
		return false
	}
	return now.Sub(m.LastFetchedAt) >= timeout
}

// StartRun stamps the run start and takes the advisory lock.
func (m *RunMetadata) StartRun(now time.Time) {
	m.LastFetchedAt = now
	m.InProgress = true
}

// FinishSuccess releases the lock and clears the last error.
func (m *RunMetadata) FinishSuccess() {
	m.InProgress = false
	m.LastError = ""
}

// FinishError releases the lock and records the failure message.
func (m *RunMetadata) FinishError(msg string) {
	m.InProgress = false
	m.LastError = msg
}

// CompleteFetch clears the pagination cursor and stamps the completion time.
// Called only when a run drains search pagination to its natural end.
func (m *RunMetadata) CompleteFetch(now time.Time) {
	m.NextPageToken = ""
	m.LastSuccessfulCompleteFetch = now
}

// PlaylistInfo is a read-only projection of platform playlist metadata, held
// in memory for the duration of one run.
type PlaylistInfo struct {
	ID          string
	Title       string
	VideoCount  int64
	Description string
	PublishedAt time.Time
}

// RegionRestriction lists countries where a video is viewable or blocked.
type RegionRestriction struct {
	Allowed []string `bson:"allowed,omitempty" json:"allowed,omitempty"`
	Blocked []string `bson:"blocked,omitempty" json:"blocked,omitempty"`
}

// ContentDetails holds the video's technical metadata.
type ContentDetails struct {
	// Duration is the ISO 8601 duration as delivered by the platform.
	Duration string `bson:"duration,omitempty" json:"duration,omitempty"`
	// DurationSeconds is Duration parsed to seconds, 0 when unparseable.
	DurationSeconds   int64              `bson:"durationSeconds" json:"duration_seconds"`
	Dimension         string             `bson:"dimension,omitempty" json:"dimension,omitempty"`
	Definition        string             `bson:"definition,omitempty" json:"definition,omitempty"`
	Caption           string             `bson:"caption,omitempty" json:"caption,omitempty"`
	LicensedContent   bool               `bson:"licensedContent" json:"licensed_content"`
	ContentRating     string             `bson:"contentRating,omitempty" json:"content_rating,omitempty"`
	RegionRestriction *RegionRestriction `bson:"regionRestriction,omitempty" json:"region_restriction,omitempty"`
}

// Statistics holds the video's engagement counters. Counts default to 0 when
// the platform omits them.
type Statistics struct {
	ViewCount     int64 `bson:"viewCount" json:"view_count"`
	LikeCount     int64 `bson:"likeCount" json:"like_count"`
	CommentCount  int64 `bson:"commentCount" json:"comment_count"`
	FavoriteCount int64 `bson:"favoriteCount" json:"favorite_count"`
}

// LiveStreamingDetails holds broadcast schedule and actuals for live content.
type LiveStreamingDetails struct {
	ScheduledStartTime time.Time `bson:"scheduledStartTime,omitempty" json:"scheduled_start_time,omitempty"`
	ScheduledEndTime   time.Time `bson:"scheduledEndTime,omitempty" json:"scheduled_end_time,omitempty"`
	ActualStartTime    time.Time `bson:"actualStartTime,omitempty" json:"actual_start_time,omitempty"`
	ActualEndTime      time.Time `bson:"actualEndTime,omitempty" json:"actual_end_time,omitempty"`
	ConcurrentViewers  int64     `bson:"concurrentViewers,omitempty" json:"concurrent_viewers,omitempty"`
}

// VideoStatus holds upload and privacy flags.
type VideoStatus struct {
	UploadStatus        string `bson:"uploadStatus,omitempty" json:"upload_status,omitempty"`
	PrivacyStatus       string `bson:"privacyStatus,omitempty" json:"privacy_status,omitempty"`
	License             string `bson:"license,omitempty" json:"license,omitempty"`
	Embeddable          bool   `bson:"embeddable" json:"embeddable"`
	PublicStatsViewable bool   `bson:"publicStatsViewable" json:"public_stats_viewable"`
	MadeForKids         bool   `bson:"madeForKids" json:"made_for_kids"`
}

// RecordingDetails holds where and when a video was recorded.
type RecordingDetails struct {
	LocationDescription string    `bson:"locationDescription,omitempty" json:"location_description,omitempty"`
	RecordingDate       time.Time `bson:"recordingDate,omitempty" json:"recording_date,omitempty"`
}

// VideoRecord is the persisted catalog entry, one per video ID.
// It is created on first sighting of a video and merged, never replaced, on
// every re-ingestion.
type VideoRecord struct {
	// VideoID is the platform video ID and the document key.
	VideoID string `bson:"_id" json:"video_id"`
	// Title is the video title.
	Title string `bson:"title" json:"title"`
	// Description is the video description.
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	// PublishedAt is when the video was published on the platform.
	PublishedAt time.Time `bson:"publishedAt,omitempty" json:"published_at,omitempty"`
	// ChannelID is the owning channel's ID.
	ChannelID string `bson:"channelId,omitempty" json:"channel_id,omitempty"`
	// ChannelTitle is the owning channel's display name.
	ChannelTitle string `bson:"channelTitle,omitempty" json:"channel_title,omitempty"`
	// ThumbnailURL is the highest-resolution thumbnail available.
	ThumbnailURL string `bson:"thumbnailUrl,omitempty" json:"thumbnail_url,omitempty"`
	// LiveBroadcastContent is one of "none", "live", "upcoming".
	LiveBroadcastContent string `bson:"liveBroadcastContent,omitempty" json:"live_broadcast_content,omitempty"`

	// Extended groups, present only when the source provides them.
	ContentDetails       *ContentDetails       `bson:"contentDetails,omitempty" json:"content_details,omitempty"`
	Statistics           *Statistics           `bson:"statistics,omitempty" json:"statistics,omitempty"`
	LiveStreamingDetails *LiveStreamingDetails `bson:"liveStreamingDetails,omitempty" json:"live_streaming_details,omitempty"`
	TopicCategories      []string              `bson:"topicCategories,omitempty" json:"topic_categories,omitempty"`
	Status               *VideoStatus          `bson:"status,omitempty" json:"status,omitempty"`
	RecordingDetails     *RecordingDetails     `bson:"recordingDetails,omitempty" json:"recording_details,omitempty"`

	// PlaylistTags are classification labels derived from channel playlist
	// membership. Always written, possibly empty.
	PlaylistTags []string `bson:"playlistTags" json:"playlist_tags"`
	// UserTags are owned by manual editing outside this pipeline. Ingestion
	// initializes them to empty on first sighting and never touches them
	// again.
	UserTags []string `bson:"userTags,omitempty" json:"user_tags,omitempty"`

	// UpdatedAt is when ingestion last wrote this record.
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// VideoDoc is one queued upsert: the mapped record plus the writer's decision
// on whether to initialize the user-owned tags field.
type VideoDoc struct {
	Record VideoRecord
	// InitUserTags is true when the record is new to the store and userTags
	// must be explicitly initialized to an empty array. When false the field
	// is omitted from the write entirely so any existing value survives.
	InitUserTags bool
}
