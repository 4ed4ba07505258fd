package httpkit_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
)

func TestError(t *testing.T) {
	t.Parallel()

	err := httpkit.Error(http.StatusNotFound, "not found")
	assert.EqualError(t, err, "not found")

	var sc httpkit.StatusCoder
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, http.StatusNotFound, sc.StatusCode())
}

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := httpkit.Errorf(http.StatusBadRequest, "invalid %s", "email")
	assert.EqualError(t, err, "invalid email")
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err    error
		expect int
	}{
		"with StatusCoder": {
			err:    httpkit.Error(http.StatusForbidden, "forbidden"),
			expect: http.StatusForbidden,
		},
		"wrapped StatusCoder": {
			err:    fmt.Errorf("loading user: %w", httpkit.Error(http.StatusNotFound, "missing")),
			expect: http.StatusNotFound,
		},
		"problem detail": {
			err:    &httpkit.ProblemDetail{Status: http.StatusUnprocessableEntity, Title: "Unprocessable"},
			expect: http.StatusUnprocessableEntity,
		},
		"without StatusCoder": {
			err:    errors.New("plain error"),
			expect: http.StatusInternalServerError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, httpkit.ErrorStatus(tc.err))
		})
	}
}

func TestHTTPError_fields(t *testing.T) {
	t.Parallel()

	err := httpkit.Error(http.StatusConflict, "conflict")

	var httpErr *httpkit.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.Status)
	assert.Equal(t, "conflict", httpErr.Message)
}

func TestProblemDetail_error(t *testing.T) {
	t.Parallel()

	assert.EqualError(t, &httpkit.ProblemDetail{Title: "Bad", Detail: "field x"}, "field x")
	assert.EqualError(t, &httpkit.ProblemDetail{Title: "Bad"}, "Bad")
}

func TestProblem(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err        error
		wantStatus int
		wantTitle  string
		wantDetail string
	}{
		"client error": {
			err:        httpkit.Error(http.StatusBadRequest, "email is required"),
			wantStatus: http.StatusBadRequest,
			wantTitle:  "Bad Request",
			wantDetail: "email is required",
		},
		"internal error hides detail": {
			err:        errors.New("connection refused on 10.0.0.3"),
			wantStatus: http.StatusInternalServerError,
			wantTitle:  "Internal Server Error",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, err := httpkit.Problem(context.Background(), tc.err).IntoResponse().Await(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.Status)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

			data, err := resp.Body.Collect(context.Background())
			require.NoError(t, err)

			var pd httpkit.ProblemDetail
			require.NoError(t, json.Unmarshal(data, &pd))
			assert.Equal(t, "about:blank", pd.Type)
			assert.Equal(t, tc.wantStatus, pd.Status)
			assert.Equal(t, tc.wantTitle, pd.Title)
			assert.Equal(t, tc.wantDetail, pd.Detail)
		})
	}
}
