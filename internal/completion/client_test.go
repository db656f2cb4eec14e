package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"

	"github.com/howard-nolan/polishgw/internal/provider"
)

// TestComplete_ReplaysRecordedExchange drives the client against a recorded
// free-tier exchange (testdata/complete_success.yaml) in replay-only mode —
// no network, same wire behavior as the live provider.
func TestComplete_ReplaysRecordedExchange(t *testing.T) {
	rec, err := recorder.New("testdata/complete_success",
		recorder.WithMode(recorder.ModeReplayOnly),
		// The cassette records only the request method and URL, so match on
		// those rather than the v4 default (which also compares headers,
		// body, and content length).
		recorder.WithMatcher(func(r *http.Request, i cassette.Request) bool {
			return r.Method == i.Method && r.URL.String() == i.URL
		}),
	)
	require.NoError(t, err)
	defer rec.Stop()

	client := NewClient(rec.GetDefaultClient())

	raw, err := client.Complete(context.Background(), &provider.Config{
		Name:   provider.Free,
		APIURL: "https://api.siliconflow.cn/v1/chat/completions",
		APIKey: "test-key",
		Model:  "Qwen/Qwen2.5-7B-Instruct",
	}, "我修复了支付模块的一个Bug")
	require.NoError(t, err)

	// The recorded reply is the three-variant JSON the model was asked for.
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.NotEmpty(t, got["standard"])
	assert.NotEmpty(t, got["datadriven"])
	assert.NotEmpty(t, got["expert"])
}

func TestComplete_SendsPromptAndAuth(t *testing.T) {
	// Capture what actually goes over the wire.
	var captured chatRequest
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client())
	raw, err := client.Complete(context.Background(), &provider.Config{
		Name:   provider.Custom,
		APIURL: srv.URL,
		APIKey: "ck-123",
		Model:  "my-model",
	}, "  我修复了一个Bug  \n")
	require.NoError(t, err)
	assert.Equal(t, "ok", raw)

	assert.Equal(t, "Bearer ck-123", authHeader)
	assert.Equal(t, "my-model", captured.Model)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "STAR")
	assert.Equal(t, "user", captured.Messages[1].Role)
	// Input is trimmed before it goes into the user turn.
	assert.Equal(t, userPromptPrefix+"我修复了一个Bug", captured.Messages[1].Content)
}

func TestComplete_ClassifiesUpstreamStatus(t *testing.T) {
	tests := []struct {
		name           string
		upstreamStatus int
		wantStatus     int
		wantInMessage  string
	}{
		{"rate limited", 429, 429, "retry"},
		{"quota exhausted", 402, 402, "quota"},
		{"bad credentials", 401, 401, "credentials"},
		{"upstream 500", 500, 500, "unavailable"},
		{"upstream 503", 503, 500, "unavailable"},
		{"upstream 404", 404, 500, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"upstream detail"}`, tt.upstreamStatus)
			}))
			defer srv.Close()

			client := NewClient(srv.Client())
			_, err := client.Complete(context.Background(), &provider.Config{
				Name:   provider.Custom,
				APIURL: srv.URL,
				APIKey: "ck",
				Model:  "m",
			}, "input")
			require.Error(t, err)

			var serr *StatusError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.wantStatus, serr.Status)
			assert.Contains(t, serr.Message, tt.wantInMessage)
		})
	}
}

func TestComplete_EmptyResponse(t *testing.T) {
	// A 2xx with no usable content is still a failure — there is nothing
	// to show the user.
	bodies := []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"role":"assistant","content":""}}]}`,
	}

	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}))

		client := NewClient(srv.Client())
		_, err := client.Complete(context.Background(), &provider.Config{
			Name:   provider.Free,
			APIURL: srv.URL,
			APIKey: "k",
			Model:  "m",
		}, "input")
		srv.Close()

		var serr *StatusError
		require.True(t, errors.As(err, &serr), "body %s", body)
		assert.Equal(t, 500, serr.Status)
		assert.Contains(t, serr.Message, "empty response")
	}
}
