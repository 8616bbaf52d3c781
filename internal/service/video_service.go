package service

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	ytclient "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"github.com/sosodev/duration"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	DefaultSearchResults = 10
	MaxSearchResults     = 50

	// DurationUnknown is shown when a video's length could not be determined.
	DurationUnknown = "N/A"
)

// VideoService looks up videos through the YouTube Data API and fetches
// caption tracks through Innertube, falling back to the timedtext endpoint.
type VideoService struct {
	cfg         *config.Config
	yt          *youtube.Service
	transcripts TranscriptFetcher
	http        *http.Client
	log         zerolog.Logger
}

// NewVideoService builds the YouTube client. Extra options are applied after
// the API key, so tests can point the client at a fake endpoint.
func NewVideoService(ctx context.Context, cfg *config.Config, log zerolog.Logger, extra ...option.ClientOption) (*VideoService, error) {
	opts := []option.ClientOption{}
	if cfg.YouTubeAPIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.YouTubeAPIKey))
	} else {
		log.Warn().Msg("YOUTUBE_API_KEY is not set. Video search will fail.")
		opts = append(opts, option.WithoutAuthentication())
	}
	opts = append(opts, extra...)

	yt, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init youtube client: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.YouTubeTimeout}
	return &VideoService{
		cfg:         cfg,
		yt:          yt,
		transcripts: &ytclient.Client{HTTPClient: httpClient},
		http:        httpClient,
		log:         log.With().Str("component", "video_service").Logger(),
	}, nil
}

// Search runs one search call and one batched duration call. A failed duration
// call degrades every duration to N/A instead of failing the search.
func (s *VideoService) Search(ctx context.Context, query string, maxResults int) ([]model.VideoRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	maxResults = clampResults(maxResults)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.YouTubeTimeout)
	defer cancel()

	resp, err := s.yt.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	videos := make([]model.VideoRef, 0, len(resp.Items))
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, model.VideoRef{
			ID:           item.Id.VideoId,
			Title:        html.UnescapeString(item.Snippet.Title),
			ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails, "medium"),
			Channel:      item.Snippet.ChannelTitle,
			Description:  item.Snippet.Description,
			PublishedAt:  item.Snippet.PublishedAt,
			Duration:     DurationUnknown,
		})
		ids = append(ids, item.Id.VideoId)
	}

	if len(ids) == 0 {
		return videos, nil
	}

	durations, err := s.durations(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Int("videos", len(ids)).Msg("Duration lookup failed, using N/A")
		return videos, nil
	}
	for i := range videos {
		if d, ok := durations[videos[i].ID]; ok {
			videos[i].Duration = d
		}
	}
	return videos, nil
}

func (s *VideoService) durations(ctx context.Context, ids []string) (map[string]string, error) {
	resp, err := s.yt.Videos.List([]string{"contentDetails"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails == nil {
			continue
		}
		d, err := FormatISODuration(item.ContentDetails.Duration)
		if err != nil {
			s.log.Debug().Err(err).Str("video_id", item.Id).Msg("Unparseable duration")
			continue
		}
		out[item.Id] = d
	}
	return out, nil
}

// GetInfo fetches the full metadata of one video.
func (s *VideoService) GetInfo(ctx context.Context, videoID string) (*model.VideoRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.YouTubeTimeout)
	defer cancel()

	resp, err := s.yt.Videos.List([]string{"snippet", "contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, ErrVideoNotFound
	}

	item := resp.Items[0]
	ref := &model.VideoRef{
		ID:           videoID,
		Title:        html.UnescapeString(item.Snippet.Title),
		ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails, "high"),
		Channel:      item.Snippet.ChannelTitle,
		Description:  item.Snippet.Description,
		PublishedAt:  item.Snippet.PublishedAt,
		Duration:     DurationUnknown,
	}
	if item.ContentDetails != nil {
		if d, err := FormatISODuration(item.ContentDetails.Duration); err == nil {
			ref.Duration = d
		}
	}
	return ref, nil
}

// TranscriptFetcher reads caption tracks through YouTube's Innertube API,
// which serves auto-generated tracks as well as uploaded ones.
type TranscriptFetcher interface {
	GetTranscriptCtx(ctx context.Context, video *ytclient.Video, lang string) (ytclient.VideoTranscript, error)
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// GetTranscript fetches the caption track of a video in the configured language.
// Innertube is asked first; the timedtext endpoint is the fallback, tried for an
// uploaded track and then for the auto-generated one.
func (s *VideoService) GetTranscript(ctx context.Context, videoID string) ([]model.TranscriptEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.YouTubeTimeout)
	defer cancel()

	log := s.log.With().Str("video_id", videoID).Logger()

	segments, err := s.transcripts.GetTranscriptCtx(ctx, &ytclient.Video{ID: videoID}, s.cfg.TranscriptLang)
	if err == nil {
		if entries := segmentEntries(segments); len(entries) > 0 {
			return entries, nil
		}
		err = errors.New("empty transcript")
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptUnavailable, ctx.Err())
	}
	log.Debug().Err(err).Msg("Innertube transcript unavailable, trying timedtext")

	for _, kind := range []string{"", "asr"} {
		entries, err := s.timedText(ctx, videoID, kind)
		if err == nil {
			return entries, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscriptUnavailable, ctx.Err())
		}
		log.Debug().Err(err).Str("kind", kind).Msg("Timedtext track unavailable")
	}
	return nil, ErrTranscriptUnavailable
}

func segmentEntries(segments ytclient.VideoTranscript) []model.TranscriptEntry {
	entries := make([]model.TranscriptEntry, 0, len(segments))
	for _, seg := range segments {
		text := cleanCaption(seg.Text)
		if text == "" {
			continue
		}
		entries = append(entries, model.TranscriptEntry{
			Text:     text,
			Start:    float64(seg.StartMs) / 1000,
			Duration: float64(seg.Duration) / 1000,
		})
	}
	return entries
}

// timedText reads one track from the timedtext endpoint. kind "asr" selects
// the auto-generated track.
func (s *VideoService) timedText(ctx context.Context, videoID, kind string) ([]model.TranscriptEntry, error) {
	u, err := url.Parse(s.cfg.TranscriptBaseURL)
	if err != nil {
		return nil, fmt.Errorf("bad transcript url: %w", err)
	}
	q := u.Query()
	q.Set("v", videoID)
	q.Set("lang", s.cfg.TranscriptLang)
	if kind != "" {
		q.Set("kind", kind)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty track")
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, err
	}

	entries := make([]model.TranscriptEntry, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := cleanCaption(t.Body)
		if text == "" {
			continue
		}
		entries = append(entries, model.TranscriptEntry{
			Text:     text,
			Start:    parseSeconds(t.Start),
			Duration: parseSeconds(t.Dur),
		})
	}
	if len(entries) == 0 {
		return nil, errors.New("no caption lines")
	}
	return entries, nil
}

// cleanCaption unescapes HTML entities and collapses whitespace.
func cleanCaption(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// FormatISODuration turns an ISO-8601 duration into zero-padded HH:MM:SS.
// Days fold into hours and hours are never truncated.
func FormatISODuration(iso string) (string, error) {
	d, err := duration.Parse(iso)
	if err != nil {
		return "", fmt.Errorf("parse duration %q: %w", iso, err)
	}
	if d.Negative {
		return "", fmt.Errorf("negative duration %q", iso)
	}

	total := int64(d.ToTimeDuration().Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), nil
}

// ExtractVideoID accepts a bare id, a youtu.be link or a youtube.com watch,
// embed or shorts link, and returns the id. Unrecognized input is returned trimmed.
func ExtractVideoID(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "youtu") {
		return input
	}

	raw := input
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return input
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")

	switch host {
	case "youtu.be":
		if path != "" {
			return strings.SplitN(path, "/", 2)[0]
		}
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"embed/", "shorts/", "live/"} {
			if strings.HasPrefix(path, prefix) {
				return strings.SplitN(strings.TrimPrefix(path, prefix), "/", 2)[0]
			}
		}
	}
	return input
}

func clampResults(n int) int {
	switch {
	case n <= 0:
		return DefaultSearchResults
	case n > MaxSearchResults:
		return MaxSearchResults
	}
	return n
}

// thumbnailURL returns the preferred size, falling back through the others.
func thumbnailURL(t *youtube.ThumbnailDetails, prefer string) string {
	if t == nil {
		return ""
	}
	bySize := map[string]*youtube.Thumbnail{
		"maxres":   t.Maxres,
		"standard": t.Standard,
		"high":     t.High,
		"medium":   t.Medium,
		"default":  t.Default,
	}
	if th := bySize[prefer]; th != nil && th.Url != "" {
		return th.Url
	}
	for _, size := range []string{"high", "medium", "default", "standard", "maxres"} {
		if th := bySize[size]; th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func parseSeconds(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
