package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabble/pkg/response"
)

func render(t *testing.T, resp response.Response) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, resp.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorDetail {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := render(t, response.JSON(map[string]string{"database_name": "north-branch"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"database_name":"north-branch"}`, rec.Body.String())

	rec = render(t, response.JSONStatus(http.StatusCreated, []int{1}))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestNoContent(t *testing.T) {
	t.Parallel()
	rec := render(t, response.NoContent())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		rec := render(t, response.JSONError(response.NewHTTPError(http.StatusUnauthorized, "database_auth_failed", "Invalid database credentials")))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, response.ErrorDetail{Code: "database_auth_failed", Message: "Invalid database credentials"}, decodeError(t, rec))
	})

	t.Run("wrapped http error", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("switch: %w", errors.Join(errors.New("cause"), response.ErrNotFound))
		rec := render(t, response.JSONError(err))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, response.ErrorDetail{Code: "not_found", Message: "Not Found"}, decodeError(t, rec))
	})

	t.Run("plain error is hidden", func(t *testing.T) {
		t.Parallel()
		rec := render(t, response.JSONError(errors.New("password=hunter2")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		detail := decodeError(t, rec)
		assert.Equal(t, "internal_server_error", detail.Code)
		assert.NotContains(t, detail.Message, "hunter2")
	})
}

func TestHandle(t *testing.T) {
	t.Parallel()

	h := response.Handle(nil, func(_ http.ResponseWriter, r *http.Request) response.Response {
		if r.URL.Query().Get("fail") != "" {
			return response.JSONError(response.ErrBadRequest)
		}
		if r.URL.Query().Get("empty") != "" {
			return nil
		}
		return response.JSON(map[string]bool{"success": true})
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/?fail=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/?empty=1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type switchRequest struct {
		DatabaseName string `json:"database_name"`
		Password     string `json:"password"`
	}

	newReq := func(contentType, body string) (*httptest.ResponseRecorder, *http.Request) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if contentType != "" {
			r.Header.Set("Content-Type", contentType)
		}
		return httptest.NewRecorder(), r
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		w, r := newReq("application/json; charset=utf-8", `{"database_name":"north-branch","password":"north123"}`)
		var req switchRequest
		require.NoError(t, response.DecodeJSON(w, r, &req))
		assert.Equal(t, switchRequest{DatabaseName: "north-branch", Password: "north123"}, req)
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		code        int
	}{
		{"missing content type", "", `{}`, http.StatusUnsupportedMediaType},
		{"form content type", "application/x-www-form-urlencoded", `a=b`, http.StatusUnsupportedMediaType},
		{"empty body", "application/json", ``, http.StatusBadRequest},
		{"malformed", "application/json", `{"database_name":`, http.StatusBadRequest},
		{"unknown field", "application/json", `{"hotel":"x"}`, http.StatusBadRequest},
		{"trailing data", "application/json", `{} {}`, http.StatusBadRequest},
		{"too large", "application/json", `{"database_name":"` + strings.Repeat("a", response.MaxBodySize) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, r := newReq(tt.contentType, tt.body)
			var req switchRequest
			err := response.DecodeJSON(w, r, &req)

			var httpErr response.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.code, httpErr.Code)
		})
	}
}
