package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "(512) 555-0142", want: "+15125550142"},
		{raw: "512.555.0142", want: "+15125550142"},
		{raw: "1-512-555-0142", want: "+15125550142"},
		{raw: "+44 20 7946 0958", want: "+442079460958"},
		{raw: " +15125550142 ", want: "+15125550142"},
		{raw: "", wantErr: true},
		{raw: "555-0142", wantErr: true},
		{raw: "512-555-0142 ext 9", wantErr: true},
		{raw: "+0123456789", wantErr: true},
		{raw: "2-512-555-0142", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhones(t *testing.T) {
	phones, rejected := NormalizePhones([]string{"512-555-0142", "+15125550142", "nope", "(737) 555-0100"})
	assert.Equal(t, []string{"+15125550142", "+17375550100"}, phones)
	assert.Equal(t, []string{"nope"}, rejected)
}

func TestSMSService_SendSMS(t *testing.T) {
	var got telnyxRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/messages", r.URL.Path)
		assert.Equal(t, "Bearer telnyx-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"40385f64-5717-4562-b3fc-2c963f66afa6"}}`))
	}))
	defer server.Close()

	sms := NewSMSService(SMSConfig{
		TelnyxAPIKey:       "telnyx-key",
		TelnyxBaseURL:      server.URL + "/",
		FromNumber:         "+15125550000",
		MessagingProfileID: "profile-1",
	})
	require.True(t, sms.Configured())

	id, err := sms.SendSMS(context.Background(), "(512) 555-0142", "Your appointment is confirmed")
	require.NoError(t, err)
	assert.Equal(t, "40385f64-5717-4562-b3fc-2c963f66afa6", id)
	assert.Equal(t, "+15125550142", got.To)
	assert.Equal(t, "+15125550000", got.From)
	assert.Equal(t, "profile-1", got.MessagingProfileID)
	assert.Equal(t, "Your appointment is confirmed", got.Text)
}

func TestSMSService_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"title":"Invalid destination"}]}`))
	}))
	defer server.Close()

	_, err := NewSMSService(SMSConfig{TelnyxBaseURL: server.URL}).SendSMS(context.Background(), "5125550142", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	sms := NewSMSService(SMSConfig{TelnyxAPIKey: "k", TelnyxBaseURL: server.URL, FromNumber: "+15125550000"})
	_, err = sms.SendSMS(context.Background(), "not a phone", "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = sms.SendSMS(context.Background(), "5125550142", "hi")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "422")
}
