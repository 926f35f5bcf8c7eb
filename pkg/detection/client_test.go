package detection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("secret-key", "http://detect.test/v1/", WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesConfiguration(t *testing.T) {
	_, err := NewClient("  ", "http://detect.test")
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient("key", "")
	require.ErrorIs(t, err, errBaseURLRequired)

	_, err = NewClient("key", "not a url")
	require.Error(t, err)
}

func TestSubmitSendsAudioURL(t *testing.T) {
	var captured *http.Request
	var payload map[string]string

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		return jsonResponse(http.StatusAccepted, `{"job_id":"job-42"}`), nil
	})

	jobID, err := client.Submit(context.Background(), " https://cdn.alera.fm/audio/1.wav ")
	require.NoError(t, err)
	assert.Equal(t, "job-42", jobID)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "http://detect.test/v1/jobs", captured.URL.String())
	assert.Equal(t, "Bearer secret-key", captured.Header.Get("Authorization"))
	assert.Equal(t, "https://cdn.alera.fm/audio/1.wav", payload["audio_url"])
}

func TestSubmitRejectsEmptyJobID(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"job_id":""}`), nil
	})

	_, err := client.Submit(context.Background(), "https://cdn.alera.fm/a.wav")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestSubmitValidatesInput(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := client.Submit(context.Background(), "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetStatusParsesResult(t *testing.T) {
	var capturedURL string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"status":"completed","result":{"flagged":true,"confidence":97.25,"model_version":"v3.1"}}`), nil
	})

	status, err := client.GetStatus(context.Background(), "job/42")
	require.NoError(t, err)
	assert.Equal(t, "http://detect.test/v1/jobs/job%2F42", capturedURL)
	assert.Equal(t, enums.VendorJobCompleted, status.Status)
	require.NotNil(t, status.Result)
	assert.True(t, status.Result.Flagged)
	assert.True(t, status.Result.Confidence.Equal(decimal.RequireFromString("97.25")))
	assert.Equal(t, "v3.1", status.Result.ModelVersion)
}

func TestGetStatusPendingWithoutResult(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":"processing"}`), nil
	})

	status, err := client.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, enums.VendorJobProcessing, status.Status)
	assert.Nil(t, status.Result)
}

func TestGetStatusRejectsUnknownStatus(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":"exploded"}`), nil
	})

	_, err := client.GetStatus(context.Background(), "job-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestErrorStatusesMapToCodes(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"error":"bad key"}`), nil
	})
	_, err := client.GetStatus(context.Background(), "job-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.Contains(t, err.Error(), "bad key")

	client = newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, `upstream`), nil
	})
	_, err = client.GetStatus(context.Background(), "job-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestTransportErrorIsDependency(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := client.Submit(context.Background(), "https://cdn.alera.fm/a.wav")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.True(t, pkgerrors.IsRetryable(err))
}

func TestNilClientIsNotConfigured(t *testing.T) {
	var client *Client
	_, err := client.GetStatus(context.Background(), "job-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
