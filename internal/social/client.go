package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/engagelens/internal/retry"
	"github.com/engagelens/pkg/models"
)

const (
	userFields     = "description,public_metrics"
	postFields     = "created_at,public_metrics,author_id"
	timelineFields = "created_at,in_reply_to_user_id,referenced_tweets,author_id"
	refExpansions  = "referenced_tweets.id,referenced_tweets.id.author_id"

	maxProfileBatch  = 100
	pageSize         = 100
	followPageSize   = 1000
	maxResponseBytes = 4 << 20
	profileCacheSize = 512
)

// ClientOptions carries the connection settings for the read API.
type ClientOptions struct {
	Endpoint string
	// Token is the app-level read credential (timeline, mentions, following,
	// user lookup). Delegated is the optional account-scoped credential that
	// unlocks the likes endpoint.
	Token     string
	Delegated string
}

// Client talks to the v2 read endpoints. Page fetches are single attempts;
// the lookup and partner-post operations retry internally because their
// callers treat them as one logical fetch.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	delegated  string
	log        zerolog.Logger
	retryCfg   retry.Config

	// profiles memoizes account lookups across the run.
	profiles  *lru.Cache[string, models.Account]
	lookupBud *budget
	postsBud  *budget
}

func NewClient(opts ClientOptions, log zerolog.Logger) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 30 * time.Second

	profiles, _ := lru.New[string, models.Account](profileCacheSize)

	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(opts.Endpoint, "/"),
		token:      opts.Token,
		delegated:  opts.Delegated,
		log:        log,
		retryCfg:   retry.DefaultConfig(),
		profiles:   profiles,
		lookupBud:  newBudget(),
		postsBud:   newBudget(),
	}
}

// HasDelegated reports whether the likes capability is available.
func (c *Client) HasDelegated() bool {
	return c.delegated != ""
}

// AccountByHandle resolves a handle to a full profile. This is the first
// network call of a run, so a 401 here fails fast on a bad credential and a
// 404 means the target itself does not exist.
func (c *Client) AccountByHandle(ctx context.Context, handle string) (models.Account, error) {
	handle = strings.TrimPrefix(handle, "@")
	query := url.Values{"user.fields": {userFields}}

	account, result := retry.Do(ctx, c.retryCfg, RetryClass, c.log, func(ctx context.Context) (models.Account, error) {
		var resp userResponse
		err := c.getJSON(ctx, c.lookupBud, "user lookup", c.token,
			"/users/by/username/"+url.PathEscape(handle), query, &resp)
		if err != nil {
			return models.Account{}, err
		}
		if resp.Data.ID == "" {
			return models.Account{}, &FatalConfigError{Reason: fmt.Sprintf("account %q not found", handle)}
		}
		return toAccount(resp.Data), nil
	})

	if err := result.Err(); err != nil {
		var rejected *SourceRejected
		if errors.As(err, &rejected) && rejected.StatusCode == http.StatusNotFound {
			return models.Account{}, &FatalConfigError{Reason: fmt.Sprintf("account %q not found", handle), Err: err}
		}
		return models.Account{}, err
	}

	c.profiles.Add(account.ID, account)
	return account, nil
}

// AccountsByIDs resolves profiles for a set of account ids, batching up to
// 100 ids per lookup call. Ids the endpoint does not return (suspended or
// deleted accounts) are simply absent from the result map.
func (c *Client) AccountsByIDs(ctx context.Context, ids []string) (map[string]models.Account, error) {
	out := make(map[string]models.Account, len(ids))

	var missing []string
	for _, id := range ids {
		if account, ok := c.profiles.Get(id); ok {
			out[id] = account
		} else {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += maxProfileBatch {
		end := min(start+maxProfileBatch, len(missing))
		query := url.Values{
			"ids":         {strings.Join(missing[start:end], ",")},
			"user.fields": {userFields},
		}

		resp, result := retry.Do(ctx, c.retryCfg, RetryClass, c.log, func(ctx context.Context) (*usersResponse, error) {
			var r usersResponse
			if err := c.getJSON(ctx, c.lookupBud, "user lookup", c.token, "/users", query, &r); err != nil {
				return nil, err
			}
			return &r, nil
		})
		if err := result.Err(); err != nil {
			return nil, err
		}

		for _, u := range resp.Data {
			account := toAccount(u)
			out[u.ID] = account
			c.profiles.Add(u.ID, account)
		}
	}

	return out, nil
}

// RecentPosts returns up to limit recent posts authored by one account,
// excluding reposts. Used to gather a partner's scoring candidates.
func (c *Client) RecentPosts(ctx context.Context, accountID string, limit int) ([]models.PartnerPost, error) {
	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}
	query := url.Values{
		"max_results":  {strconv.Itoa(limit)},
		"exclude":      {"retweets"},
		"tweet.fields": {postFields},
	}

	posts, result := retry.Do(ctx, c.retryCfg, RetryClass, c.log, func(ctx context.Context) ([]models.PartnerPost, error) {
		var resp tweetsResponse
		err := c.getJSON(ctx, c.postsBud, "partner posts", c.token,
			"/users/"+url.PathEscape(accountID)+"/tweets", query, &resp)
		if err != nil {
			return nil, err
		}
		out := make([]models.PartnerPost, 0, len(resp.Data))
		for _, t := range resp.Data {
			post := toPost(t)
			if post.AuthorID == "" {
				post.AuthorID = accountID
			}
			out = append(out, post)
		}
		return out, nil
	})

	return posts, result.Err()
}

// Raw page fetches backing the signal sources. Single attempt each; the
// drain loop owns the retry policy.

func (c *Client) timelinePage(ctx context.Context, bud *budget, accountID, cursor string) (*tweetsResponse, error) {
	query := url.Values{
		"max_results":  {strconv.Itoa(pageSize)},
		"tweet.fields": {timelineFields},
		"expansions":   {refExpansions},
	}
	if cursor != "" {
		query.Set("pagination_token", cursor)
	}
	var resp tweetsResponse
	err := c.getJSON(ctx, bud, "timeline", c.token, "/users/"+url.PathEscape(accountID)+"/tweets", query, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) mentionsPage(ctx context.Context, bud *budget, accountID, cursor string) (*tweetsResponse, error) {
	query := url.Values{
		"max_results":  {strconv.Itoa(pageSize)},
		"tweet.fields": {postFields},
	}
	if cursor != "" {
		query.Set("pagination_token", cursor)
	}
	var resp tweetsResponse
	err := c.getJSON(ctx, bud, "mentions", c.token, "/users/"+url.PathEscape(accountID)+"/mentions", query, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) likedPage(ctx context.Context, bud *budget, accountID, cursor string) (*tweetsResponse, error) {
	query := url.Values{
		"max_results":  {strconv.Itoa(pageSize)},
		"tweet.fields": {postFields},
	}
	if cursor != "" {
		query.Set("pagination_token", cursor)
	}
	var resp tweetsResponse
	err := c.getJSON(ctx, bud, "likes", c.delegated, "/users/"+url.PathEscape(accountID)+"/liked_tweets", query, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) followingPage(ctx context.Context, bud *budget, accountID, cursor string) (*usersResponse, error) {
	query := url.Values{
		"max_results": {strconv.Itoa(followPageSize)},
	}
	if cursor != "" {
		query.Set("pagination_token", cursor)
	}
	var resp usersResponse
	err := c.getJSON(ctx, bud, "following", c.token, "/users/"+url.PathEscape(accountID)+"/following", query, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// getJSON performs one authorized GET and decodes the 200 payload into out.
// Non-200 statuses map onto the error taxonomy in errors.go.
func (c *Client) getJSON(ctx context.Context, bud *budget, source, token, path string, query url.Values, out interface{}) error {
	if err := bud.wait(ctx); err != nil {
		return err
	}

	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", source, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "engagelens")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientFetchError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	bud.observe(resp.Header)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransientFetchError{Source: source, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return c.statusError(source, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		// A mangled body from a 200 is treated like a flaky upstream.
		return &TransientFetchError{Source: source, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) statusError(source string, status int, body []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)
	detail := parsed.detail()
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return &FatalConfigError{Reason: fmt.Sprintf("credential rejected on %s: %s", source, detail)}
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientFetchError{Source: source, StatusCode: status, Err: errors.New(detail)}
	default:
		return &SourceRejected{Source: source, StatusCode: status, Detail: detail}
	}
}
