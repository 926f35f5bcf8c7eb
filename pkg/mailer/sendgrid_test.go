package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestNewSendGridRequiresKey(t *testing.T) {
	_, err := NewSendGrid(" ", "no-reply@alera.fm")
	require.ErrorIs(t, err, errAPIKeyRequired)
}

func TestSendBuildsV3Payload(t *testing.T) {
	var captured *http.Request
	var payload sendGridRequest

	sender, err := NewSendGrid("sg-key", "Alera <no-reply@alera.fm>",
		WithBaseURL("http://sendgrid.test/"),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			captured = req
			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &payload))
			return respond(http.StatusAccepted, ""), nil
		})}),
	)
	require.NoError(t, err)

	err = sender.Send(context.Background(), Message{
		To:       "artist@example.com",
		Subject:  "Your release passed its audio scan",
		HTMLBody: "<p>Good news</p>",
		TextBody: "Good news",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://sendgrid.test/v3/mail/send", captured.URL.String())
	assert.Equal(t, "Bearer sg-key", captured.Header.Get("Authorization"))
	assert.Equal(t, "no-reply@alera.fm", payload.From.Email)
	assert.Equal(t, "Alera", payload.From.Name)
	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "artist@example.com", payload.Personalizations[0].To[0].Email)
	require.Len(t, payload.Content, 2)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	assert.Equal(t, "text/html", payload.Content[1].Type)
}

func TestSendValidatesMessage(t *testing.T) {
	sender, err := NewSendGrid("sg-key", "no-reply@alera.fm", WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("no request expected")
			return nil, nil
		}),
	}))
	require.NoError(t, err)

	cases := []Message{
		{To: "not-an-address", Subject: "s", HTMLBody: "b"},
		{To: "a@example.com", Subject: " ", HTMLBody: "b"},
		{To: "a@example.com", Subject: "s"},
	}
	for _, msg := range cases {
		err := sender.Send(context.Background(), msg)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "message %+v", msg)
	}
}

func TestSendClassifiesFailures(t *testing.T) {
	status := http.StatusBadRequest
	sender, err := NewSendGrid("sg-key", "no-reply@alera.fm", WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return respond(status, `{"errors":[{"message":"bad"}]}`), nil
		}),
	}))
	require.NoError(t, err)

	msg := Message{To: "a@example.com", Subject: "s", TextBody: "b"}

	err = sender.Send(context.Background(), msg)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.False(t, pkgerrors.IsRetryable(err))

	status = http.StatusServiceUnavailable
	err = sender.Send(context.Background(), msg)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.IsRetryable(err))
}
