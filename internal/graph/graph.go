// Package graph folds classified interaction records into weighted
// per-counterpart scores and ranks the result. Pure computation: no I/O, no
// state between calls.
package graph

import (
	"sort"

	"github.com/engagelens/pkg/models"
)

// Weights maps each interaction kind to its score contribution. The weight
// tracks the intentionality of the interaction, not its virality: writing a
// reply costs more effort than tapping like.
var Weights = map[models.InteractionKind]float64{
	models.KindReply:   4,
	models.KindQuote:   3,
	models.KindRetweet: 2,
	models.KindMention: 1,
	models.KindLike:    1,
}

// BoostStrategy selects how the following-overlap boost combines with an
// aggregated score.
type BoostStrategy string

const (
	BoostMultiply BoostStrategy = "multiply"
	BoostAdd      BoostStrategy = "add"
)

// BoostConfig controls the following-overlap boost.
type BoostConfig struct {
	Enabled  bool
	Strategy BoostStrategy
	Value    float64
}

// DefaultBoost multiplies a followed counterpart's score by 1.5.
func DefaultBoost() BoostConfig {
	return BoostConfig{Enabled: true, Strategy: BoostMultiply, Value: 1.5}
}

// Build aggregates records into a score map keyed by counterpart id.
// Self-interactions (counterpart == targetID) are dropped. DiscoveryIndex
// records the order counterparts first appear in the record stream; callers
// that assemble records concurrently must fix the stream order first.
//
// The boost applies exactly once per counterpart after all records are
// aggregated. Applying it per record would double-count counterparts that
// interact through several kinds.
func Build(records []models.InteractionRecord, following map[string]bool, targetID string, boost BoostConfig) map[string]*models.InteractionScore {
	scores := make(map[string]*models.InteractionScore)
	next := 0

	for _, record := range records {
		if record.CounterpartID == "" || record.CounterpartID == targetID {
			continue
		}

		score, ok := scores[record.CounterpartID]
		if !ok {
			score = &models.InteractionScore{
				CounterpartID:  record.CounterpartID,
				Breakdown:      make(map[models.InteractionKind]int),
				DiscoveryIndex: next,
			}
			next++
			scores[record.CounterpartID] = score
		}

		score.Weight += Weights[record.Kind]
		score.Breakdown[record.Kind]++
	}

	if boost.Enabled && len(following) > 0 {
		for id, score := range scores {
			if !following[id] {
				continue
			}
			switch boost.Strategy {
			case BoostAdd:
				score.Weight += boost.Value
			default:
				score.Weight *= boost.Value
			}
			score.Boosted = true
		}
	}

	return scores
}

// Rank orders the score map descending by weight and truncates to topN
// (topN <= 0 keeps everything). Equal weights break toward the counterpart
// discovered earlier, which makes repeated runs over the same input produce
// the same list.
func Rank(scores map[string]*models.InteractionScore, topN int) []models.RankedPartner {
	ordered := make([]*models.InteractionScore, 0, len(scores))
	for _, score := range scores {
		ordered = append(ordered, score)
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Weight != ordered[j].Weight {
			return ordered[i].Weight > ordered[j].Weight
		}
		return ordered[i].DiscoveryIndex < ordered[j].DiscoveryIndex
	})

	if topN > 0 && len(ordered) > topN {
		ordered = ordered[:topN]
	}

	partners := make([]models.RankedPartner, 0, len(ordered))
	for i, score := range ordered {
		partners = append(partners, models.RankedPartner{
			Rank:          i + 1,
			CounterpartID: score.CounterpartID,
			Score:         score.Weight,
		})
	}
	return partners
}
