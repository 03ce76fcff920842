package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream serves the Stream endpoints the video service calls. Assets
// start pending and move to whatever state is set in states.
type fakeStream struct {
	mu      sync.Mutex
	states  map[string]string
	deleted []string
}

func (f *fakeStream) setState(uid, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[uid] = state
}

func (f *fakeStream) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stream-token", r.Header.Get("Authorization"))
		path := strings.TrimPrefix(r.URL.Path, "/accounts/acct/stream")

		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && path == "/direct_upload":
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.EqualValues(t, 600, body["maxDurationSeconds"])
			f.states["vid-1"] = "pendingupload"
			w.Write([]byte(`{"success":true,"result":{"uid":"vid-1","uploadURL":"https://upload.example.com/vid-1"}}`))
		case r.Method == http.MethodGet:
			state, ok := f.states[strings.TrimPrefix(path, "/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			result := map[string]interface{}{
				"uid":           strings.TrimPrefix(path, "/"),
				"readyToStream": state == "ready",
				"thumbnail":     "https://cdn.example.com/thumb.jpg",
				"duration":      42.5,
				"status":        map[string]string{"state": state},
				"playback":      map[string]string{"hls": "https://cdn.example.com/v.m3u8", "dash": "https://cdn.example.com/v.mpd"},
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "result": result})
		case r.Method == http.MethodDelete:
			f.deleted = append(f.deleted, strings.TrimPrefix(path, "/"))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func newTestVideoService(t *testing.T) (*VideoService, *fakeStream) {
	t.Helper()
	fake := &fakeStream{states: map[string]string{}}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	stream := NewStreamService(StreamConfig{
		CloudflareAccountID: "acct",
		CloudflareAPIToken:  "stream-token",
		CloudflareBaseURL:   server.URL + "/",
		MaxDurationSeconds:  600,
	})
	return NewVideoService(testutil.SetupTestRepo(t), stream), fake
}

func TestVideoService_UploadAndRefresh(t *testing.T) {
	service, fake := newTestVideoService(t)
	ctx := context.Background()

	ticket, err := service.RequestUpload(ctx, "7b0c5c5e-6f3a-4a59-8f0c-1c2d3e4f5a6b", nil, "Aftercare walkthrough")
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.com/vid-1", ticket.UploadURL)
	assert.Equal(t, "vid-1", ticket.Video.StreamUID)
	assert.Equal(t, models.VideoPendingUpload, ticket.Video.Status)

	fake.setState("vid-1", "inprogress")
	video, err := service.Refresh(ctx, ticket.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoProcessing, video.Status)
	assert.Nil(t, video.ReadyAt)

	fake.setState("vid-1", "ready")
	video, err = service.Refresh(ctx, ticket.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoReady, video.Status)
	assert.Equal(t, "https://cdn.example.com/v.m3u8", video.PlaybackHLS)
	assert.Equal(t, 42.5, video.Duration)
	require.NotNil(t, video.ReadyAt)
	readyAt := *video.ReadyAt

	video, err = service.Refresh(ctx, ticket.Video.ID)
	require.NoError(t, err)
	assert.True(t, readyAt.Equal(*video.ReadyAt), "ready time is kept on later refreshes")
}

func TestVideoService_AssetGoneFromStream(t *testing.T) {
	service, fake := newTestVideoService(t)
	ctx := context.Background()

	ticket, err := service.RequestUpload(ctx, "7b0c5c5e-6f3a-4a59-8f0c-1c2d3e4f5a6b", nil, "")
	require.NoError(t, err)

	fake.mu.Lock()
	delete(fake.states, "vid-1")
	fake.mu.Unlock()

	video, err := service.Refresh(ctx, ticket.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoError, video.Status)

	require.NoError(t, service.Delete(ctx, ticket.Video.ID))
	assert.Equal(t, []string{"vid-1"}, fake.deleted)
	assert.ErrorIs(t, service.Delete(ctx, ticket.Video.ID), ErrNotFound)

	_, err = service.Refresh(ctx, ticket.Video.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVideoService_NotConfigured(t *testing.T) {
	service := NewVideoService(testutil.SetupTestRepo(t), NewStreamService(StreamConfig{}))
	_, err := service.RequestUpload(context.Background(), "7b0c5c5e-6f3a-4a59-8f0c-1c2d3e4f5a6b", nil, "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestApplyAsset(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"", models.VideoPendingUpload},
		{"pendingupload", models.VideoPendingUpload},
		{"queued", models.VideoProcessing},
		{"error", models.VideoError},
		{"ready", models.VideoReady},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			video := &models.Video{}
			asset := &StreamAsset{}
			asset.Status.State = tt.state
			applyAsset(video, asset)
			assert.Equal(t, tt.want, video.Status)
		})
	}
}
