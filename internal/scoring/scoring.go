// Package scoring ranks a partner's posts by composite engagement. Pure
// arithmetic over fetched counters; no I/O.
package scoring

import (
	"sort"

	"github.com/engagelens/pkg/models"
)

// Engagement multipliers. Reposts and quotes push a post to new audiences,
// so they outweigh likes; replies signal conversation; impressions add a
// marginal volume term and sit at zero for accounts whose metrics the API
// withholds.
const (
	retweetWeight    = 3.0
	quoteWeight      = 2.5
	likeWeight       = 1.0
	replyWeight      = 1.5
	impressionWeight = 0.01
)

// EngagementScore computes the composite engagement score for one post.
func EngagementScore(post models.PartnerPost) float64 {
	return float64(post.Retweets)*retweetWeight +
		float64(post.Quotes)*quoteWeight +
		float64(post.Likes)*likeWeight +
		float64(post.Replies)*replyWeight +
		float64(post.Impressions)*impressionWeight
}

// NormalizedScore rescales a score to per-thousand-followers so accounts of
// very different audience sizes compare meaningfully. The denominator floors
// at 1.
func NormalizedScore(score float64, followers int) float64 {
	if followers < 1 {
		followers = 1
	}
	return score / float64(followers) * 1000
}

// SelectTop scores every post and returns the k highest, ties going to the
// more recent post. The input slice is left untouched; the returned posts
// carry their computed raw and normalized scores.
func SelectTop(posts []models.PartnerPost, k int, followers int) []models.PartnerPost {
	scored := make([]models.PartnerPost, len(posts))
	copy(scored, posts)

	for i := range scored {
		scored[i].Score = EngagementScore(scored[i])
		scored[i].NormalizedScore = NormalizedScore(scored[i].Score, followers)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
