package social

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/engagelens/internal/retry"
	"github.com/engagelens/pkg/models"
)

// Per-source page ceilings. The server caps retrievable history anyway, so
// stopping early is a recency-bias boundary, not an error.
const (
	timelineMaxPages  = 8
	mentionsMaxPages  = 8
	likesMaxPages     = 10
	followingMaxPages = 10
)

// Page is one fetched-and-classified slice of a source's record stream.
type Page struct {
	Records    []models.InteractionRecord
	NextCursor string
}

// SignalSource yields a lazy, finite, restartable sequence of interaction
// record pages. A page fetch is idempotent given the same cursor and an
// unmodified remote state, which is what makes per-page retry safe.
type SignalSource interface {
	FetchPage(ctx context.Context, cursor string) (*Page, error)
	Name() string
	MaxPages() int
}

// TimelineSource reads the target's own posts and classifies their
// references (replies, quotes, reposts) into interaction records.
type TimelineSource struct {
	client   *Client
	targetID string
	bud      *budget
}

func NewTimelineSource(client *Client, targetID string) *TimelineSource {
	return &TimelineSource{client: client, targetID: targetID, bud: newBudget()}
}

func (s *TimelineSource) Name() string  { return "timeline" }
func (s *TimelineSource) MaxPages() int { return timelineMaxPages }

func (s *TimelineSource) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	resp, err := s.client.timelinePage(ctx, s.bud, s.targetID, cursor)
	if err != nil {
		return nil, err
	}
	return &Page{Records: classifyTimeline(resp), NextCursor: resp.Meta.NextToken}, nil
}

// MentionsSource reads posts that mention the target and credits their
// authors.
type MentionsSource struct {
	client   *Client
	targetID string
	bud      *budget
}

func NewMentionsSource(client *Client, targetID string) *MentionsSource {
	return &MentionsSource{client: client, targetID: targetID, bud: newBudget()}
}

func (s *MentionsSource) Name() string  { return "mentions" }
func (s *MentionsSource) MaxPages() int { return mentionsMaxPages }

func (s *MentionsSource) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	resp, err := s.client.mentionsPage(ctx, s.bud, s.targetID, cursor)
	if err != nil {
		return nil, err
	}
	return &Page{Records: classifyMentions(resp, s.targetID), NextCursor: resp.Meta.NextToken}, nil
}

// LikesSource reads the posts the target liked and credits their authors.
// It needs the delegated credential; without one it degrades to zero pages.
type LikesSource struct {
	client   *Client
	targetID string
	bud      *budget
}

func NewLikesSource(client *Client, targetID string) *LikesSource {
	return &LikesSource{client: client, targetID: targetID, bud: newBudget()}
}

func (s *LikesSource) Name() string  { return "likes" }
func (s *LikesSource) MaxPages() int { return likesMaxPages }

func (s *LikesSource) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	if !s.client.HasDelegated() {
		return nil, &CapabilityUnavailable{Source: s.Name(), Capability: "delegated token"}
	}
	resp, err := s.client.likedPage(ctx, s.bud, s.targetID, cursor)
	if err != nil {
		return nil, err
	}
	return &Page{Records: classifyLikes(resp), NextCursor: resp.Meta.NextToken}, nil
}

// Drain pulls every page a source will yield, retrying transient failures
// per page under cfg. Failures stay inside the source boundary: a permanent
// rejection or retry exhaustion zeroes the source's whole contribution,
// partial pages included, and the run continues. Only fatal credential
// errors and cancellation propagate to the caller.
func Drain(ctx context.Context, source SignalSource, cfg retry.Config, log zerolog.Logger) ([]models.InteractionRecord, error) {
	var records []models.InteractionRecord
	cursor := ""

	for page := 0; page < source.MaxPages(); page++ {
		fetched, result := retry.Do(ctx, cfg, RetryClass, log, func(ctx context.Context) (*Page, error) {
			return source.FetchPage(ctx, cursor)
		})
		if err := result.Err(); err != nil {
			var capability *CapabilityUnavailable
			if errors.As(err, &capability) {
				log.Warn().Str("source", source.Name()).Str("capability", capability.Capability).
					Msg("capability unavailable, source degraded to empty")
				return nil, nil
			}
			var fatal *FatalConfigError
			if errors.As(err, &fatal) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var rejected *SourceRejected
			if errors.As(err, &rejected) {
				log.Warn().Str("source", source.Name()).Int("status", rejected.StatusCode).
					Str("detail", rejected.Detail).Msg("source rejected, dropping its contribution")
				return nil, nil
			}
			log.Warn().Err(err).Str("source", source.Name()).Int("attempts", result.Attempts).
				Msg("source failed after retries, dropping its contribution")
			return nil, nil
		}

		records = append(records, fetched.Records...)
		if fetched.NextCursor == "" {
			break
		}
		cursor = fetched.NextCursor
	}

	log.Debug().Str("source", source.Name()).Int("records", len(records)).Msg("source drained")
	return records, nil
}

// FollowingSource drains the target's following list into an id set for the
// ranking boost. It produces no interaction records, so it sits outside the
// SignalSource union.
type FollowingSource struct {
	client   *Client
	targetID string
	bud      *budget
}

func NewFollowingSource(client *Client, targetID string) *FollowingSource {
	return &FollowingSource{client: client, targetID: targetID, bud: newBudget()}
}

// FetchIDs pages through the following list. Any non-fatal failure degrades
// to an empty set: ranking then proceeds without the boost.
func (s *FollowingSource) FetchIDs(ctx context.Context, cfg retry.Config, log zerolog.Logger) (map[string]bool, error) {
	ids := make(map[string]bool)
	cursor := ""

	for page := 0; page < followingMaxPages; page++ {
		resp, result := retry.Do(ctx, cfg, RetryClass, log, func(ctx context.Context) (*usersResponse, error) {
			return s.client.followingPage(ctx, s.bud, s.targetID, cursor)
		})
		if err := result.Err(); err != nil {
			var fatal *FatalConfigError
			if errors.As(err, &fatal) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("following fetch failed, ranking proceeds without the boost")
			return nil, nil
		}

		for _, u := range resp.Data {
			ids[u.ID] = true
		}
		if resp.Meta.NextToken == "" {
			break
		}
		cursor = resp.Meta.NextToken
	}

	log.Debug().Int("accounts", len(ids)).Msg("following set drained")
	return ids, nil
}

// SignalSources returns the target's signal sources in canonical order:
// timeline, mentions, likes. The order fixes discovery order downstream.
func (c *Client) SignalSources(targetID string) []SignalSource {
	return []SignalSource{
		NewTimelineSource(c, targetID),
		NewMentionsSource(c, targetID),
		NewLikesSource(c, targetID),
	}
}

// FollowingIDs drains the target's following list under the client's own
// retry policy.
func (c *Client) FollowingIDs(ctx context.Context, targetID string) (map[string]bool, error) {
	return NewFollowingSource(c, targetID).FetchIDs(ctx, c.retryCfg, c.log)
}
