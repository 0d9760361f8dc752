package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagelens/internal/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newTestClient(t *testing.T, handler http.Handler, delegated string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(ClientOptions{Endpoint: srv.URL, Token: "app-token", Delegated: delegated}, zerolog.Nop())
	c.retryCfg = fastRetry()
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload interface{}) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestAccountByHandle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/by/username/somedev", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("user.fields"), "public_metrics")
		u := userObject{ID: "1001", Username: "somedev", Name: "Some Dev", Description: "builds things"}
		u.PublicMetrics.FollowersCount = 5400
		u.PublicMetrics.FollowingCount = 300
		writeJSON(t, w, userResponse{Data: u})
	})

	c := newTestClient(t, mux, "")

	account, err := c.AccountByHandle(context.Background(), "@somedev")
	require.NoError(t, err)
	assert.Equal(t, "1001", account.ID)
	assert.Equal(t, "somedev", account.Handle)
	assert.Equal(t, "Some Dev", account.DisplayName)
	assert.Equal(t, 5400, account.Followers)

	// The profile is memoized for later batch lookups.
	cached, ok := c.profiles.Get("1001")
	require.True(t, ok)
	assert.Equal(t, "somedev", cached.Handle)
}

func TestAccountByHandleUnauthorized(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"title":"Unauthorized","detail":"bad token"}`)
	})

	c := newTestClient(t, handler, "")

	_, err := c.AccountByHandle(context.Background(), "somedev")
	var fatal *FatalConfigError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, fatal.Reason, "credential rejected")
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestAccountByHandleNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":[{"title":"Not Found Error","detail":"no such user"}]}`)
	})

	c := newTestClient(t, handler, "")

	_, err := c.AccountByHandle(context.Background(), "ghost")
	var fatal *FatalConfigError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, fatal.Reason, "ghost")
}

func TestAccountByHandleRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, userResponse{Data: userObject{ID: "1", Username: "somedev"}})
	})

	c := newTestClient(t, handler, "")

	account, err := c.AccountByHandle(context.Background(), "somedev")
	require.NoError(t, err)
	assert.Equal(t, "1", account.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAccountsByIDsBatches(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		assert.LessOrEqual(t, len(ids), 100)
		users := make([]userObject, 0, len(ids))
		for _, id := range ids {
			users = append(users, userObject{ID: id, Username: "user" + id})
		}
		writeJSON(t, w, usersResponse{Data: users})
	})

	c := newTestClient(t, mux, "")

	ids := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		ids = append(ids, fmt.Sprintf("%d", i))
	}

	accounts, err := c.AccountsByIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, accounts, 250)
	assert.Equal(t, "user42", accounts["42"].Handle)
	assert.Equal(t, int32(3), calls.Load(), "250 ids should take 3 lookup calls")

	// Second resolution is served from the profile cache.
	_, err = c.AccountsByIDs(context.Background(), ids[:100])
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRecentPosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/77/tweets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "retweets", r.URL.Query().Get("exclude"))
		assert.Equal(t, "100", r.URL.Query().Get("max_results"))

		post := tweetObject{ID: "t1", Text: "shipping day", CreatedAt: classifyTime}
		post.PublicMetrics.LikeCount = 100
		post.PublicMetrics.RetweetCount = 10
		post.PublicMetrics.ReplyCount = 5
		writeJSON(t, w, tweetsResponse{Data: []tweetObject{post}})
	})

	c := newTestClient(t, mux, "")

	posts, err := c.RecentPosts(context.Background(), "77", 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "t1", posts[0].ID)
	assert.Equal(t, "77", posts[0].AuthorID, "author id falls back to the requested account")
	assert.Equal(t, 100, posts[0].Likes)
	assert.Equal(t, 10, posts[0].Retweets)
	assert.Equal(t, 5, posts[0].Replies)
}

func TestRecentPostsRejectedSurfacesType(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"title":"Forbidden","detail":"protected account"}`)
	})

	c := newTestClient(t, handler, "")

	_, err := c.RecentPosts(context.Background(), "88", 100)
	var rejected *SourceRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusForbidden, rejected.StatusCode)
}

func TestLikedPageUsesDelegatedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/9/liked_tweets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer delegated-token", r.Header.Get("Authorization"))
		writeJSON(t, w, tweetsResponse{Data: []tweetObject{{ID: "l1", AuthorID: "alice", CreatedAt: classifyTime}}})
	})

	c := newTestClient(t, mux, "delegated-token")

	resp, err := c.likedPage(context.Background(), newBudget(), "9", "")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "alice", resp.Data[0].AuthorID)
}

func TestGetJSONMalformedBodyIsTransient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [truncated`)
	})

	c := newTestClient(t, handler, "")

	var out tweetsResponse
	err := c.getJSON(context.Background(), newBudget(), "timeline", c.token, "/anything", nil, &out)
	var transient *TransientFetchError
	assert.ErrorAs(t, err, &transient)
}

func TestStatusErrorMapping(t *testing.T) {
	c := NewClient(ClientOptions{Endpoint: "http://unused"}, zerolog.Nop())

	var fatal *FatalConfigError
	assert.True(t, errors.As(c.statusError("timeline", 401, nil), &fatal))

	var transient *TransientFetchError
	assert.True(t, errors.As(c.statusError("timeline", 429, nil), &transient))
	assert.True(t, errors.As(c.statusError("timeline", 503, nil), &transient))

	var rejected *SourceRejected
	assert.True(t, errors.As(c.statusError("likes", 403, []byte(`{"detail":"not allowed"}`)), &rejected))
	assert.Equal(t, "not allowed", rejected.Detail)
}
