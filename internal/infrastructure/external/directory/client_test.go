package directory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halisaha/teammatch/internal/domain/shared"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(rt roundTripperFunc) *Client {
	cfg := DefaultClientConfig("https://directory.test/api/")
	cfg.HTTPClient = &http.Client{Transport: rt}
	cfg.RetryDelay = time.Millisecond
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func TestListUsers_SendsBearerAndCacheBuster(t *testing.T) {
	var captured *http.Request
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `[{"_id":"u1","position":"Forward"}]`), nil
	})
	c.now = func() time.Time { return time.Unix(0, 42) }

	records, err := c.ListUsers(context.Background(), "token-1")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "u1", records[0].ID)
	assert.Equal(t, "/api/users", captured.URL.Path)
	assert.Equal(t, "42", captured.URL.Query().Get("_t"))
	assert.Equal(t, "Bearer token-1", captured.Header.Get("Authorization"))
	assert.Contains(t, captured.Header.Get("Cache-Control"), "no-cache")
}

func TestListUsers_AcceptsEnvelope(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"success":true,"data":[{"_id":"a"},{"_id":"b"}]}`), nil
	})

	records, err := c.ListUsers(context.Background(), "tok")

	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListUsers_MalformedElementKeepsBatch(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"users":[{"_id":"a","position":"Forward"},{"_id":"b","phone":5552223344}]}`), nil
	})

	records, err := c.ListUsers(context.Background(), "tok")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NoError(t, records[0].DecodeErr)
	assert.Error(t, records[1].DecodeErr)
	assert.Equal(t, "b", records[1].Identifier())
}

func TestListUsers_EmptyListIsError(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	_, err := c.ListUsers(context.Background(), "tok")

	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestListUsers_NotAList(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `"maintenance"`), nil
	})

	_, err := c.ListUsers(context.Background(), "tok")

	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestListUsers_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return jsonResponse(http.StatusBadGateway, "upstream"), nil
		}
		return jsonResponse(http.StatusOK, `[{"_id":"u1"}]`), nil
	})

	records, err := c.ListUsers(context.Background(), "tok")

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestListUsers_UnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusUnauthorized, `{"message":"expired"}`), nil
	})

	_, err := c.ListUsers(context.Background(), "tok")

	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestListUsers_ErrorMessageKeepsWholeRunes(t *testing.T) {
	body := "a" + strings.Repeat("ş", 150)
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, body), nil
	})

	_, err := c.ListUsers(context.Background(), "tok")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, utf8.ValidString(apiErr.Message))
	assert.LessOrEqual(t, len(apiErr.Message), maxErrorMessage)
	assert.True(t, strings.HasPrefix(body, apiErr.Message))
	assert.Len(t, apiErr.Message, 199)
}

func TestListUsers_NoCredential(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected without a credential")
		return nil, nil
	})

	_, err := c.ListUsers(context.Background(), "")

	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestListUsers_TimesOut(t *testing.T) {
	cfg := DefaultClientConfig("https://directory.test")
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 1
	cfg.HTTPClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})}
	c := NewClient(cfg)

	start := time.Now()
	_, err := c.ListUsers(context.Background(), "tok")

	assert.ErrorIs(t, err, shared.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestListUsers_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusNotFound, "gone"), nil
	})

	for i := 0; i < 3; i++ {
		_, err := c.ListUsers(context.Background(), "tok")
		require.Error(t, err)
	}
	_, err := c.ListUsers(context.Background(), "tok")

	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}
