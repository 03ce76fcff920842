package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

var errStreamNotFound = errors.New("stream asset not found")

// StreamService wraps the Cloudflare Stream API.
type StreamService struct {
	accountID   string
	apiToken    string
	baseURL     string
	maxDuration int
	client      *http.Client
}

type cloudflareEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// DirectUpload is a one-time upload URL for a new Stream asset.
type DirectUpload struct {
	UID       string `json:"uid"`
	UploadURL string `json:"uploadURL"`
}

// StreamAsset is the subset of a Stream video we keep.
type StreamAsset struct {
	UID           string  `json:"uid"`
	ReadyToStream bool    `json:"readyToStream"`
	Thumbnail     string  `json:"thumbnail"`
	Duration      float64 `json:"duration"`
	Status        struct {
		State string `json:"state"`
	} `json:"status"`
	Playback struct {
		HLS  string `json:"hls"`
		Dash string `json:"dash"`
	} `json:"playback"`
}

func NewStreamService(cfg StreamConfig) *StreamService {
	return &StreamService{
		accountID:   cfg.CloudflareAccountID,
		apiToken:    cfg.CloudflareAPIToken,
		baseURL:     strings.TrimRight(cfg.CloudflareBaseURL, "/"),
		maxDuration: cfg.MaxDurationSeconds,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *StreamService) configured() bool {
	return s.accountID != "" && s.apiToken != ""
}

func (s *StreamService) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	if !s.configured() {
		return fmt.Errorf("%w: cloudflare stream", ErrNotConfigured)
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	url := fmt.Sprintf("%s/accounts/%s/stream%s", s.baseURL, s.accountID, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: cloudflare request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return errStreamNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: cloudflare API error: %d - %s", ErrUpstream, resp.StatusCode, truncate(string(respBody), 300))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}

	var envelope cloudflareEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("%w: failed to parse cloudflare response: %v", ErrUpstream, err)
	}
	if !envelope.Success {
		msg := "unknown error"
		if len(envelope.Errors) > 0 {
			msg = envelope.Errors[0].Message
		}
		return fmt.Errorf("%w: cloudflare API error: %s", ErrUpstream, msg)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("%w: failed to parse cloudflare result: %v", ErrUpstream, err)
	}
	return nil
}

// CreateDirectUpload reserves a Stream uid and returns its upload URL.
func (s *StreamService) CreateDirectUpload(ctx context.Context, name string) (*DirectUpload, error) {
	payload := map[string]interface{}{
		"maxDurationSeconds": s.maxDuration,
		"meta":               map[string]string{"name": name},
	}
	var upload DirectUpload
	if err := s.do(ctx, http.MethodPost, "/direct_upload", payload, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (s *StreamService) GetAsset(ctx context.Context, uid string) (*StreamAsset, error) {
	var asset StreamAsset
	if err := s.do(ctx, http.MethodGet, "/"+uid, nil, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *StreamService) DeleteAsset(ctx context.Context, uid string) error {
	return s.do(ctx, http.MethodDelete, "/"+uid, nil, nil)
}

// VideoService keeps video rows in step with Stream assets.
type VideoService struct {
	repo   *repository.GORMRepository
	stream *StreamService
}

func NewVideoService(repo *repository.GORMRepository, stream *StreamService) *VideoService {
	return &VideoService{repo: repo, stream: stream}
}

type UploadRequest struct {
	Title string `json:"title" validate:"max=255"`
}

type UploadTicket struct {
	Video     *models.Video `json:"video"`
	UploadURL string        `json:"upload_url"`
}

// RequestUpload creates a direct upload URL and a pending video row.
// clientID is set for uploads made from the client portal.
func (s *VideoService) RequestUpload(ctx context.Context, uploadedBy string, clientID *string, title string) (*UploadTicket, error) {
	upload, err := s.stream.CreateDirectUpload(ctx, title)
	if err != nil {
		return nil, err
	}
	video := &models.Video{
		StreamUID:  upload.UID,
		Title:      title,
		Status:     models.VideoPendingUpload,
		UploadedBy: uploadedBy,
		ClientID:   clientID,
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}
	slog.Info("Video upload requested", "video_id", video.ID, "stream_uid", upload.UID)
	return &UploadTicket{Video: video, UploadURL: upload.UploadURL}, nil
}

// Refresh pulls the asset state from Stream and records playback URLs once
// the video is ready.
func (s *VideoService) Refresh(ctx context.Context, id string) (*models.Video, error) {
	video, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if video == nil {
		return nil, fmt.Errorf("%w: video", ErrNotFound)
	}

	asset, err := s.stream.GetAsset(ctx, video.StreamUID)
	if errors.Is(err, errStreamNotFound) {
		video.Status = models.VideoError
	} else if err != nil {
		return nil, err
	} else {
		applyAsset(video, asset)
	}

	if err := s.repo.UpdateVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("failed to update video: %w", err)
	}
	return video, nil
}

func applyAsset(video *models.Video, asset *StreamAsset) {
	switch {
	case asset.ReadyToStream || asset.Status.State == "ready":
		if video.Status != models.VideoReady {
			now := time.Now().UTC()
			video.ReadyAt = &now
		}
		video.Status = models.VideoReady
		video.PlaybackHLS = asset.Playback.HLS
		video.PlaybackDash = asset.Playback.Dash
		video.ThumbnailURL = asset.Thumbnail
		video.Duration = asset.Duration
	case asset.Status.State == "error":
		video.Status = models.VideoError
	case asset.Status.State == "pendingupload" || asset.Status.State == "":
		video.Status = models.VideoPendingUpload
	default:
		video.Status = models.VideoProcessing
	}
}

// Delete removes the Stream asset and then the row. An asset already gone
// from Stream is not an error.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	video, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get video: %w", err)
	}
	if video == nil {
		return fmt.Errorf("%w: video", ErrNotFound)
	}
	if err := s.stream.DeleteAsset(ctx, video.StreamUID); err != nil && !errors.Is(err, errStreamNotFound) {
		return err
	}
	if err := s.repo.DeleteVideo(ctx, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}
