package ingest

import (
	"context"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	yt "google.golang.org/api/youtube/v3"

	"ytcatalog/storage"
)

// Writer converts platform detail records into catalog documents and performs
// chunked, idempotent merge-upserts that preserve the user-owned tags field
// across re-ingestion.
type Writer struct {
	store     storage.VideoStore
	batchSize int
	now       func() time.Time
	log       *log.Entry
}

// NewWriter creates a writer flushing every batchSize queued documents.
func NewWriter(store storage.VideoStore, batchSize int, logger *log.Entry) *Writer {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Writer{store: store, batchSize: batchSize, now: time.Now, log: logger}
}

// Save validates, maps, and upserts the given records. Records missing the
// required identity fields are skipped without failing the batch. The
// returned count is of records validated and queued; commit failures are
// logged and swallowed, so the count can exceed what is durable.
func (w *Writer) Save(ctx context.Context, items []TaggedVideo) (int, error) {
	records := make([]storage.VideoRecord, 0, len(items))
	for _, item := range items {
		if !validDetail(item.Video) {
			w.log.WithField("video", describeInvalid(item.Video)).
				Warn("writer: skipping record missing identity fields")
			continue
		}
		records = append(records, MapVideo(item.Video, item.PlaylistTags, w.now()))
	}

	for start := 0; start < len(records); start += w.batchSize {
		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := w.commit(ctx, records[start:end]); err != nil {
			return 0, err
		}
	}

	w.log.WithFields(log.Fields{
		"queued":  len(records),
		"skipped": len(items) - len(records),
	}).Info("writer: save finished")
	return len(records), nil
}

// commit reads existing documents to decide userTags initialization, then
// issues one bulk merge-upsert. The read failure is fatal for the run; the
// commit failure is deliberately swallowed so later batches still run.
func (w *Writer) commit(ctx context.Context, batch []storage.VideoRecord) error {
	ids := make([]string, len(batch))
	for i, rec := range batch {
		ids[i] = rec.VideoID
	}

	existing, err := w.store.ExistingIDs(ctx, ids)
	if err != nil {
		return err
	}

	docs := make([]storage.VideoDoc, len(batch))
	for i, rec := range batch {
		_, seen := existing[rec.VideoID]
		docs[i] = storage.VideoDoc{Record: rec, InitUserTags: !seen}
	}

	if err := w.store.CommitBatch(ctx, docs); err != nil {
		w.log.WithError(err).WithField("batch", len(docs)).
			Error("writer: batch commit failed, continuing with next batch")
	}
	return nil
}

// validDetail requires the two identity fields: the video ID and a titled
// snippet.
func validDetail(v *yt.Video) bool {
	return v != nil && v.Id != "" && v.Snippet != nil && v.Snippet.Title != ""
}

func describeInvalid(v *yt.Video) string {
	if v == nil {
		return "<nil>"
	}
	if v.Id == "" {
		return "<missing id>"
	}
	return v.Id
}

// MapVideo converts a platform detail record into the catalog schema.
// Optional metadata groups are carried only when the source provides them;
// counters default to 0 when absent.
func MapVideo(v *yt.Video, playlistTags []string, now time.Time) storage.VideoRecord {
	rec := storage.VideoRecord{
		VideoID:      v.Id,
		PlaylistTags: playlistTags,
		UpdatedAt:    now,
	}
	if rec.PlaylistTags == nil {
		rec.PlaylistTags = []string{}
	}

	if sn := v.Snippet; sn != nil {
		rec.Title = sn.Title
		rec.Description = sn.Description
		rec.PublishedAt = parseTime(sn.PublishedAt)
		rec.ChannelID = sn.ChannelId
		rec.ChannelTitle = sn.ChannelTitle
		rec.ThumbnailURL = pickThumbnail(sn.Thumbnails)
		rec.LiveBroadcastContent = sn.LiveBroadcastContent
	}
	if rec.LiveBroadcastContent == "" {
		rec.LiveBroadcastContent = "none"
	}

	if cd := v.ContentDetails; cd != nil {
		details := &storage.ContentDetails{
			Duration:        cd.Duration,
			DurationSeconds: parseISODuration(cd.Duration),
			Dimension:       cd.Dimension,
			Definition:      cd.Definition,
			Caption:         cd.Caption,
			LicensedContent: cd.LicensedContent,
		}
		if cd.ContentRating != nil {
			details.ContentRating = cd.ContentRating.YtRating
		}
		if rr := cd.RegionRestriction; rr != nil {
			details.RegionRestriction = &storage.RegionRestriction{
				Allowed: rr.Allowed,
				Blocked: rr.Blocked,
			}
		}
		rec.ContentDetails = details
	}

	if st := v.Statistics; st != nil {
		rec.Statistics = &storage.Statistics{
			ViewCount:     int64(st.ViewCount),
			LikeCount:     int64(st.LikeCount),
			CommentCount:  int64(st.CommentCount),
			FavoriteCount: int64(st.FavoriteCount),
		}
	}

	if ls := v.LiveStreamingDetails; ls != nil {
		rec.LiveStreamingDetails = &storage.LiveStreamingDetails{
			ScheduledStartTime: parseTime(ls.ScheduledStartTime),
			ScheduledEndTime:   parseTime(ls.ScheduledEndTime),
			ActualStartTime:    parseTime(ls.ActualStartTime),
			ActualEndTime:      parseTime(ls.ActualEndTime),
			ConcurrentViewers:  int64(ls.ConcurrentViewers),
		}
	}

	if td := v.TopicDetails; td != nil {
		rec.TopicCategories = td.TopicCategories
	}

	if st := v.Status; st != nil {
		rec.Status = &storage.VideoStatus{
			UploadStatus:        st.UploadStatus,
			PrivacyStatus:       st.PrivacyStatus,
			License:             st.License,
			Embeddable:          st.Embeddable,
			PublicStatsViewable: st.PublicStatsViewable,
			MadeForKids:         st.MadeForKids,
		}
	}

	if rd := v.RecordingDetails; rd != nil {
		rec.RecordingDetails = &storage.RecordingDetails{
			LocationDescription: rd.LocationDescription,
			RecordingDate:       parseTime(rd.RecordingDate),
		}
	}

	return rec
}

// pickThumbnail selects the highest-resolution thumbnail URL available,
// maxres over standard over high over medium over default.
func pickThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*yt.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

// parseTime parses an RFC 3339 timestamp, returning the zero time on any
// failure rather than erroring.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseISODuration parses an ISO 8601 duration such as "PT1H2M3S" into
// seconds. Unparseable input yields 0, never an error.
func parseISODuration(s string) int64 {
	if !strings.HasPrefix(s, "P") {
		return 0
	}
	rest := s[1:]

	var total int64
	inTime := false
	num := ""
	for _, r := range rest {
		switch {
		case r == 'T':
			inTime = true
			num = ""
		case r >= '0' && r <= '9':
			num += string(r)
		default:
			n, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return 0
			}
			num = ""
			switch r {
			case 'W':
				total += n * 7 * 24 * 3600
			case 'D':
				total += n * 24 * 3600
			case 'H':
				if !inTime {
					return 0
				}
				total += n * 3600
			case 'M':
				if inTime {
					total += n * 60
				} else {
					total += n * 30 * 24 * 3600
				}
			case 'S':
				if !inTime {
					return 0
				}
				total += n
			case 'Y':
				total += n * 365 * 24 * 3600
			default:
				return 0
			}
		}
	}
	return total
}
