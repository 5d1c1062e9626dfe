package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestService(t *testing.T, h http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewService(2*time.Second, nil, option.WithEndpoint(srv.URL+"/"))
}

func TestListAllFollowsPagination(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "category:primary newer_than:7d", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("pageToken") {
		case "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages":      []map[string]string{{"id": "m1", "threadId": "t1"}, {"id": "m2", "threadId": "t2"}},
				"nextPageToken": "p2",
			})
		case "p2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "m3", "threadId": "t3"}},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	svc := newTestService(t, mux)
	msgs, err := svc.ListAll(context.Background(), "tok", []string{"category:primary", "newer_than:7d"})
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "t1", msgs[0].ThreadID)
	assert.Equal(t, "m3", msgs[2].ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListAllEmptyMailbox(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultSizeEstimate":0}`))
	})

	msgs, err := newTestService(t, mux).ListAll(context.Background(), "tok", nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListAllFailsOnErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"messages":[{"id":"m1"}],"nextPageToken":"p2"}`))
			return
		}
		http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
	})

	_, err := newTestService(t, mux).ListAll(context.Background(), "tok", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")
}

func TestListAllUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":401,"message":"invalid credentials"}}`, http.StatusUnauthorized)
	})

	_, err := newTestService(t, mux).ListAll(context.Background(), "tok", []string{"x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListAllCallDeadline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := NewService(50*time.Millisecond, nil, option.WithEndpoint(srv.URL+"/"))
	start := time.Now()
	_, err := svc.ListAll(context.Background(), "tok", []string{"x"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchRaw(t *testing.T) {
	body := "Subject: Payment confirmation\r\n\r\nhello??>>"
	encoded := base64.RawURLEncoding.EncodeToString([]byte(body))

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "m1",
			"raw":          encoded,
			"internalDate": "1700000000000",
		})
	})

	msg, err := newTestService(t, mux).FetchRaw(context.Background(), "tok", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, body, string(msg.Raw))
	assert.Equal(t, int64(1700000000000), msg.InternalDate)
}

func TestDecodeRaw(t *testing.T) {
	for _, in := range []string{"a", "ab", "abc", "abcd", "<<??>>~~", "\xff\xfe\xfd"} {
		enc := base64.RawURLEncoding.EncodeToString([]byte(in))
		out, err := DecodeRaw(enc)
		require.NoError(t, err, in)
		assert.Equal(t, in, string(out))

		padded := base64.URLEncoding.EncodeToString([]byte(in))
		out, err = DecodeRaw(padded)
		require.NoError(t, err, in)
		assert.Equal(t, in, string(out))
	}

	_, err := DecodeRaw("!!!")
	assert.Error(t, err)
}
