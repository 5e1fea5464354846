package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		Title string `json:"title"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "x", dest.Title)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	assert.True(t, apperr.IsKind(ParseJSON(r, &dest), apperr.KindValidation))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"owner":"me"}`))
	assert.True(t, apperr.IsKind(ParseJSON(r, &dest), apperr.KindValidation))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	err := ParseJSON(r, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Request body is required")
}

func TestPathParam(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "abc"})
	id, err := PathParam(r, "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = PathParam(r, "missing")
	assert.Error(t, err)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=50&bad=x", nil)

	n, err := QueryInt(r, "limit")
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = QueryInt(r, "absent")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = QueryInt(r, "bad")
	assert.Error(t, err)
}
