package extraction_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/extraction"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL string) *extraction.Client {
	return extraction.NewClient(extraction.Config{APIKey: "test-key", BaseURL: baseURL + "/"}, nil)
}

func TestExtractDecodesStructuredResponse(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, "```json\n"+`{
		"students":[{"firstName":"Jane","lastName":"Doe","confidence":0.9},{"firstName":"John","lastName":"Smith"}],
		"contentType":"student_list","confidence":0.8,"warnings":["check John"],"errors":[]
	}`+"\n```")

	out, err := newClient(srv.URL).Extract(context.Background(), "Jane Doe\nJohn Smith")
	require.NoError(t, err)

	assert.Equal(t, domain.ContentTypeStudentList, out.ContentType)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
	require.Len(t, out.Students, 2)
	assert.Equal(t, "Jane", out.Students[0].FirstName)
	assert.InDelta(t, 0.9, out.Students[0].Confidence, 1e-9)
	assert.InDelta(t, 0.8, out.Students[1].Confidence, 1e-9, "missing score inherits overall confidence")
	assert.Equal(t, []string{"check John"}, out.Warnings)
}

func TestExtractUnknownContentTypeBecomesMixed(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, `{"students":[],"contentType":"recipe"}`)

	out, err := newClient(srv.URL).Extract(context.Background(), "flour, sugar")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentTypeMixedContent, out.ContentType)
	assert.InDelta(t, 0.5, out.Confidence, 1e-9)
}

func TestExtractMalformedContent(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, "sorry, I cannot help with that")

	_, err := newClient(srv.URL).Extract(context.Background(), "Jane Doe")
	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ErrorClassMalformed, extErr.Class)
}

func TestExtractClassifiesStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]domain.ErrorClass{
		http.StatusRequestEntityTooLarge: domain.ErrorClassPayloadTooLarge,
		http.StatusUnauthorized:          domain.ErrorClassClient,
		http.StatusNotImplemented:        domain.ErrorClassUnavailable,
	}

	for status, want := range cases {
		srv := statusServer(t, status)

		_, err := newClient(srv.URL).Extract(context.Background(), "Jane Doe")
		var extErr *domain.ExtractionError
		require.True(t, errors.As(err, &extErr), "status %d", status)
		assert.Equal(t, want, extErr.Class, "status %d", status)
		assert.Equal(t, status, extErr.StatusCode)
	}
}
