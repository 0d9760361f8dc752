package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagelens/pkg/models"
)

func post(id string, likes, retweets, quotes, replies, impressions int) models.PartnerPost {
	return models.PartnerPost{
		ID:          id,
		Likes:       likes,
		Retweets:    retweets,
		Quotes:      quotes,
		Replies:     replies,
		Impressions: impressions,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEngagementScore(t *testing.T) {
	// 10*3.0 + 0*2.5 + 100*1.0 + 5*1.5 + 0*0.01 = 137.5
	p := post("p1", 100, 10, 0, 5, 0)
	assert.Equal(t, 137.5, EngagementScore(p))
}

func TestEngagementScoreWithImpressions(t *testing.T) {
	p := post("p1", 100, 10, 0, 5, 1000)
	assert.Equal(t, 147.5, EngagementScore(p))
}

func TestEngagementScoreZeroPost(t *testing.T) {
	assert.Equal(t, 0.0, EngagementScore(post("p1", 0, 0, 0, 0, 0)))
}

func TestNormalizedScore(t *testing.T) {
	assert.Equal(t, 5.0, NormalizedScore(10, 2000))

	// Follower count floors at 1 rather than dividing by zero.
	assert.Equal(t, NormalizedScore(10, 1), NormalizedScore(10, 0))
	assert.Equal(t, NormalizedScore(10, 1), NormalizedScore(10, -3))
}

func TestSelectTopPicksHighest(t *testing.T) {
	lower := post("lower", 100, 10, 0, 5, 0)   // 137.5
	higher := post("higher", 100, 10, 1, 5, 0) // 140.0

	top := SelectTop([]models.PartnerPost{lower, higher}, 1, 1000)
	require.Len(t, top, 1)
	assert.Equal(t, "higher", top[0].ID)
	assert.Equal(t, 140.0, top[0].Score)
}

func TestSelectTopTieBreaksTowardRecent(t *testing.T) {
	older := post("older", 50, 0, 0, 0, 0)
	newer := post("newer", 50, 0, 0, 0, 0)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	top := SelectTop([]models.PartnerPost{older, newer}, 1, 1000)
	require.Len(t, top, 1)
	assert.Equal(t, "newer", top[0].ID)
}

func TestSelectTopFillsScores(t *testing.T) {
	p := post("p1", 100, 10, 0, 5, 0)

	top := SelectTop([]models.PartnerPost{p}, 3, 2000)
	require.Len(t, top, 1)
	assert.Equal(t, 137.5, top[0].Score)
	assert.InDelta(t, 68.75, top[0].NormalizedScore, 1e-9)
}

func TestSelectTopLeavesInputUntouched(t *testing.T) {
	posts := []models.PartnerPost{post("a", 1, 0, 0, 0, 0), post("b", 99, 0, 0, 0, 0)}

	_ = SelectTop(posts, 1, 100)

	assert.Equal(t, "a", posts[0].ID, "input order must not change")
	assert.Zero(t, posts[0].Score, "input must not be scored in place")
}

func TestSelectTopKLargerThanInput(t *testing.T) {
	top := SelectTop([]models.PartnerPost{post("a", 1, 0, 0, 0, 0)}, 5, 100)
	assert.Len(t, top, 1)
}

func TestSelectTopEmptyInput(t *testing.T) {
	assert.Empty(t, SelectTop(nil, 3, 100))
}
