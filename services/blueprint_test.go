package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/krshsl/medspa/backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{"summary":"Your answers point to a few areas worth discussing.","focus_areas":[],"next_step":"Book a consult"}`

func TestParseBlueprintJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "plain object", raw: validReply},
		{name: "fenced with language tag", raw: "```json\n" + validReply + "\n```"},
		{name: "fenced without tag", raw: "```\n" + validReply + "\n```"},
		{name: "surrounding whitespace", raw: "\n  " + validReply + "  \n"},
		{name: "array", raw: `[{"summary":"x"}]`, wantErr: true},
		{name: "prose", raw: "Here is your plan!", wantErr: true},
		{name: "missing summary", raw: `{"next_step":"call us"}`, wantErr: true},
		{name: "blank summary", raw: `{"summary":"   "}`, wantErr: true},
		{name: "summary not a string", raw: `{"summary":42}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseBlueprintJSON(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Book a consult", doc["next_step"])
		})
	}
}

func newTestBlueprintService(repo *repository.GORMRepository, ai Completer, limiter *RateLimiter, mailer Mailer) *BlueprintService {
	cfg := &Config{}
	cfg.AI.OpenAIModel = "test-model"
	cfg.Business.SiteURL = "https://spa.example.com"
	return NewBlueprintService(repo, ai, limiter, mailer, nil, cfg)
}

func blueprintBody(t *testing.T, fields map[string]interface{}) *bytes.Reader {
	t.Helper()
	body := map[string]interface{}{
		"answers": map[string]interface{}{"energy": "low", "sleep": "poor"},
	}
	for k, v := range fields {
		body[k] = v
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func toolsRouter(service *BlueprintService, uploads *UploadLimiter) http.Handler {
	r := chi.NewRouter()
	NewBlueprintEndpoints(service, uploads).RegisterRoutes(r)
	return r
}

func TestBlueprintHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		ai         Completer
		limit      int
		fields     map[string]interface{}
		wantStatus int
	}{
		{
			name:       "success",
			ai:         &fakeCompleter{reply: validReply},
			wantStatus: http.StatusOK,
		},
		{
			name:       "honeypot filled",
			ai:         &fakeCompleter{reply: validReply},
			fields:     map[string]interface{}{"website": "http://spam.example"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid email",
			ai:         &fakeCompleter{reply: validReply},
			fields:     map[string]interface{}{"email": "not-an-email"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing answers",
			ai:         &fakeCompleter{reply: validReply},
			fields:     map[string]interface{}{"answers": map[string]interface{}{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rate limited",
			ai:         &fakeCompleter{reply: validReply},
			limit:      -1,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "model error",
			ai:         &fakeCompleter{err: errors.New("timeout")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "model reply without summary",
			ai:         &fakeCompleter{reply: `{"plan":"x"}`},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "no model configured",
			ai:         nil,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.SetupTestRepo(t)

			var limiter *RateLimiter
			if tt.limit < 0 {
				counter := newFakeCounter()
				limiter = NewRateLimiter(counter, RateLimitConfig{Hormone: 1})
				// Use up the single allowed request.
				require.True(t, limiter.Allow(context.Background(), "192.0.2.1", FeatureHormone))
			}
			service := newTestBlueprintService(repo, tt.ai, limiter, nil)

			req := httptest.NewRequest(http.MethodPost, "/tools/hormone-blueprint", blueprintBody(t, tt.fields))
			req.RemoteAddr = "192.0.2.1:5000"
			rec := httptest.NewRecorder()
			toolsRouter(service, nil).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestBlueprintService_PersistsAndEmails(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	mailer := &fakeMailer{}
	ai := &fakeCompleter{reply: "```json\n" + validReply + "\n```"}
	service := newTestBlueprintService(repo, ai, nil, mailer)
	ctx := context.Background()

	journey, err := service.Generate(ctx, KindJourney, BlueprintRequest{
		Answers: map[string]interface{}{"goal": "refresh"},
	}, RequestMeta{IP: "192.0.2.9"})
	require.NoError(t, err)
	require.NotEmpty(t, journey.SessionID)
	assert.Equal(t, 0, mailer.count())

	face, err := service.Generate(ctx, KindFace, BlueprintRequest{
		Email:            "Visitor@Example.com",
		FirstName:        "Ana",
		Answers:          map[string]interface{}{"concern": "fine lines"},
		JourneySessionID: journey.SessionID,
	}, RequestMeta{IP: "192.0.2.9"})
	require.NoError(t, err)

	var stored models.FaceSession
	require.NoError(t, repo.DB().First(&stored, "id = ?", face.SessionID).Error)
	assert.Equal(t, "visitor@example.com", stored.Email)
	assert.Equal(t, "test-model", stored.Model)
	require.NotNil(t, stored.JourneySessionID)
	assert.Equal(t, journey.SessionID, *stored.JourneySessionID)

	require.Equal(t, 1, mailer.count())
	sent := mailer.sent[0]
	assert.Equal(t, []string{"visitor@example.com"}, sent.To)
	assert.True(t, sent.BCCBusiness)
	assert.Contains(t, sent.HTML, "Hi Ana")
	assert.Contains(t, sent.HTML, "https://spa.example.com/book")
}

func TestBlueprintService_UnknownJourneyIgnored(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	service := newTestBlueprintService(repo, &fakeCompleter{reply: validReply}, nil, nil)

	result, err := service.Generate(context.Background(), KindHormone, BlueprintRequest{
		Answers:          map[string]interface{}{"energy": "low"},
		JourneySessionID: "7b0c5c5e-6f3a-4a59-8f0c-1c2d3e4f5a6b",
	}, RequestMeta{})
	require.NoError(t, err)

	var stored models.HormoneSession
	require.NoError(t, repo.DB().First(&stored, "id = ?", result.SessionID).Error)
	assert.Nil(t, stored.JourneySessionID)
}

func TestBlueprintService_MailerFailureDoesNotFail(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	mailer := &fakeMailer{err: errors.New("resend down")}
	service := newTestBlueprintService(repo, &fakeCompleter{reply: validReply}, nil, mailer)

	result, err := service.Generate(context.Background(), KindHormone, BlueprintRequest{
		Email:   "a@example.com",
		Answers: map[string]interface{}{"energy": "low"},
	}, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, 1, mailer.count())
}

func TestBlueprintService_FormTiming(t *testing.T) {
	service := newTestBlueprintService(nil, &fakeCompleter{reply: validReply}, nil, nil)
	service.botCheck.MinFillDuration = 3 * time.Second
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	answers := map[string]interface{}{"energy": "low"}
	ctx := context.Background()

	_, err := service.Generate(ctx, KindHormone, BlueprintRequest{Answers: answers}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput, "missing timestamp")

	_, err = service.Generate(ctx, KindHormone, BlueprintRequest{
		Answers:   answers,
		StartedAt: now.Add(-time.Second).UnixMilli(),
	}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput, "too fast")

	result, err := service.Generate(ctx, KindHormone, BlueprintRequest{
		Answers:   answers,
		StartedAt: now.Add(-10 * time.Second).UnixMilli(),
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Empty(t, result.SessionID, "nothing is stored without a repository")
}

func TestBlueprintService_Turnstile(t *testing.T) {
	var gotToken string
	verify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		gotToken = r.PostForm.Get("response")
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		if gotToken == "good" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer verify.Close()

	service := newTestBlueprintService(nil, &fakeCompleter{reply: validReply}, nil, nil)
	service.turnstile = NewTurnstileVerifier(BotCheckConfig{TurnstileSecret: "secret", TurnstileURL: verify.URL})
	answers := map[string]interface{}{"energy": "low"}
	ctx := context.Background()

	_, err := service.Generate(ctx, KindFace, BlueprintRequest{Answers: answers}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = service.Generate(ctx, KindFace, BlueprintRequest{Answers: answers, TurnstileToken: "bad"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "bad", gotToken)

	_, err = service.Generate(ctx, KindFace, BlueprintRequest{Answers: answers, TurnstileToken: "good"}, RequestMeta{})
	assert.NoError(t, err)
}

func TestBlueprintService_UnknownKind(t *testing.T) {
	service := newTestBlueprintService(nil, &fakeCompleter{reply: validReply}, nil, nil)
	_, err := service.Generate(context.Background(), "astrology", BlueprintRequest{
		Answers: map[string]interface{}{"sign": "leo"},
	}, RequestMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func labUpload(t *testing.T, field, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename == "" {
		require.NoError(t, mw.WriteField(field, content))
	} else {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/tools/analyze-lab", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "198.51.100.7:1234"
	return req
}

func TestAnalyzeLabHandler(t *testing.T) {
	labReply := `{"summary":"Most markers are in range.","markers":[],"questions":[]}`

	t.Run("pasted text", func(t *testing.T) {
		ai := &fakeCompleter{reply: labReply}
		router := toolsRouter(newTestBlueprintService(nil, ai, nil, nil), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, labUpload(t, "lab_text", "", "", "TSH,2.1,0.4-4.0"))

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"analysis"`)
		assert.Equal(t, 1, ai.calls)
	})

	t.Run("csv file", func(t *testing.T) {
		router := toolsRouter(newTestBlueprintService(nil, &fakeCompleter{reply: labReply}, nil, nil), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, labUpload(t, "file", "labs.csv", "text/csv", "marker,value\nTSH,2.1"))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("rejects pdf", func(t *testing.T) {
		router := toolsRouter(newTestBlueprintService(nil, &fakeCompleter{reply: labReply}, nil, nil), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, labUpload(t, "file", "labs.pdf", "application/pdf", "%PDF-1.4"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("empty form", func(t *testing.T) {
		router := toolsRouter(newTestBlueprintService(nil, &fakeCompleter{reply: labReply}, nil, nil), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, labUpload(t, "lab_text", "", "", "   "))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upload limit", func(t *testing.T) {
		router := toolsRouter(newTestBlueprintService(nil, &fakeCompleter{reply: labReply}, nil, nil), NewUploadLimiter(1))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, labUpload(t, "lab_text", "", "", "TSH 2.1"))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, labUpload(t, "lab_text", "", "", "TSH 2.1"))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("not a multipart form", func(t *testing.T) {
		router := toolsRouter(newTestBlueprintService(nil, &fakeCompleter{reply: labReply}, nil, nil), nil)
		req := httptest.NewRequest(http.MethodPost, "/tools/analyze-lab", strings.NewReader("TSH 2.1"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestIsLabContentType(t *testing.T) {
	assert.True(t, isLabContentType("text/plain; charset=utf-8", "a.bin"))
	assert.True(t, isLabContentType("text/csv", ""))
	assert.True(t, isLabContentType("application/octet-stream", "results.CSV"))
	assert.True(t, isLabContentType("", "results.txt"))
	assert.False(t, isLabContentType("application/octet-stream", "results.pdf"))
	assert.False(t, isLabContentType("image/png", "results.txt"))
}
