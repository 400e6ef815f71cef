package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/changenotify/internal/config"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

const brevoURL = "https://api.brevo.com/v3/smtp/email"

func newTestBrevo(t *testing.T, apiKey string) *Brevo {
	t.Helper()
	b := NewBrevo(mockSettings{vals: map[string]string{sdomain.KeyBrevoAPIKey: apiKey}}, config.Config{BrevoSender: "fallback@example.com"})
	httpmock.ActivateNonDefault(b.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return b
}

func TestBrevo_Send(t *testing.T) {
	b := newTestBrevo(t, "key-123")
	var got brevoEmail
	httpmock.RegisterResponder(http.MethodPost, brevoURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("api-key") != "key-123" {
			return httpmock.NewStringResponse(401, `{"code":"unauthorized"}`), nil
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(201, `{"messageId":"<abc@smtp-relay.mailin.fr>"}`), nil
	})

	n, err := b.Send(context.Background(), edomain.Message{
		FromAddress: "shop@example.com", FromName: "Shop", To: "member@example.com",
		Subject: "your profile was changed", Body: "Email address: a -> b",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Equal(t, "shop@example.com", got.Sender.Email)
	assert.Equal(t, "Shop", got.Sender.Name)
	require.Len(t, got.To, 1)
	assert.Equal(t, "member@example.com", got.To[0].Email)
	assert.Equal(t, "Email address: a -> b", got.TextContent)
}

func TestBrevo_SendFailure(t *testing.T) {
	b := newTestBrevo(t, "key-123")
	httpmock.RegisterResponder(http.MethodPost, brevoURL,
		httpmock.NewStringResponder(400, `{"code":"invalid_parameter","message":"email is not valid"}`))

	n, err := b.Send(context.Background(), edomain.Message{FromAddress: "shop@example.com", To: "bad"})

	assert.Equal(t, 0, n)
	assert.ErrorContains(t, err, "email is not valid")
}

func TestBrevo_NoMessageID(t *testing.T) {
	b := newTestBrevo(t, "key-123")
	httpmock.RegisterResponder(http.MethodPost, brevoURL, httpmock.NewStringResponder(201, `{}`))

	n, err := b.Send(context.Background(), edomain.Message{FromAddress: "shop@example.com", To: "a@example.com"})

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBrevo_NotConfigured(t *testing.T) {
	b := newTestBrevo(t, "")

	_, err := b.Send(context.Background(), edomain.Message{To: "a@example.com"})

	assert.True(t, errors.Is(err, edomain.ErrNotConfigured))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
