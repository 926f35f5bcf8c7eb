package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

type createBody struct {
	Title       string `json:"title" validate:"required,max=200"`
	ReleaseType string `json:"release_type" validate:"required,release_type"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	var body createBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","release_type":"Mixtape"}`))
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "is not a valid release type", details["release_type"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","release_type":"EP"}`))
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "EP", body.ReleaseType)
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndEmpty(t *testing.T) {
	var body createBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","release_type":"EP","extra":1}`))
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, "abc", params.Cursor)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=1000", nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseParams(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("releaseId", "not-a-uuid")
	rctx.URLParams.Add("scanId", "42")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	_, err := ParseUUIDParam(req, "releaseId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	id, err := ParseInt64Param(req, "scanId")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}
