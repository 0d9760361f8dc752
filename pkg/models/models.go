package models

import (
	"time"
)

// Interaction graph models

// InteractionKind classifies a single observed interaction. Every record
// carries exactly one kind; classification is exhaustive over this set.
type InteractionKind string

const (
	KindReply   InteractionKind = "reply"
	KindQuote   InteractionKind = "quote"
	KindRetweet InteractionKind = "retweet"
	KindMention InteractionKind = "mention"
	KindLike    InteractionKind = "like"
)

// InteractionRecord is one observed interaction between the target and a
// counterpart account. Immutable once produced by a signal source.
type InteractionRecord struct {
	Kind          InteractionKind `json:"kind"`
	CounterpartID string          `json:"counterpart_id"`
	SourcePostID  string          `json:"source_post_id"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// InteractionScore accumulates the weighted interactions for one counterpart.
// Weight holds the pre-boost weighted sum; Breakdown counts records per kind.
// DiscoveryIndex is the counterpart's first position in the canonical record
// stream and is the ranking tie-break.
type InteractionScore struct {
	CounterpartID  string                  `json:"counterpart_id"`
	Weight         float64                 `json:"weight"`
	Breakdown      map[InteractionKind]int `json:"breakdown"`
	Boosted        bool                    `json:"boosted"`
	DiscoveryIndex int                     `json:"discovery_index"`
}

// RecordCount returns the total number of records behind this score.
func (s *InteractionScore) RecordCount() int {
	total := 0
	for _, n := range s.Breakdown {
		total += n
	}
	return total
}

// RankedPartner is one entry of the final partner ranking, including the
// resolved profile. Profile fields stay zero-valued when resolution fails.
type RankedPartner struct {
	Rank          int     `json:"rank"`
	CounterpartID string  `json:"counterpart_id"`
	Score         float64 `json:"score"`
	Handle        string  `json:"handle,omitempty"`
	DisplayName   string  `json:"display_name,omitempty"`
	Bio           string  `json:"bio,omitempty"`
	Followers     int     `json:"followers"`
}

// Account models

// Account is a resolved account profile.
type Account struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PostCount   int    `json:"post_count"`
	ListedCount int    `json:"listed_count"`
}

// PartnerPost is one candidate post of a ranked partner with its raw
// engagement counters. Impressions is 0 when the API withholds it for
// non-owner accounts.
type PartnerPost struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"author_id"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"created_at"`
	Likes           int       `json:"likes"`
	Retweets        int       `json:"retweets"`
	Quotes          int       `json:"quotes"`
	Replies         int       `json:"replies"`
	Impressions     int       `json:"impressions"`
	Score           float64   `json:"score"`
	NormalizedScore float64   `json:"normalized_score,omitempty"`
}

// Analysis models

// PartnerAnalysis is the structured output of the per-partner analysis call.
// When the collaborator returns something unparseable, Raw carries the
// verbatim response; when the call itself fails, Error carries the failure.
// Either way the run continues and the report renders what is present.
type PartnerAnalysis struct {
	Handle        string   `json:"user_handle,omitempty"`
	Patterns      []string `json:"patterns,omitempty"`
	Tone          string   `json:"tone,omitempty"`
	ContentTypes  []string `json:"content_types,omitempty"`
	HookAnalysis  string   `json:"hook_analysis,omitempty"`
	BestPractices []string `json:"best_practices,omitempty"`
	Raw           string   `json:"raw_response,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Tactic is one entry of the global synthesis tactic list.
type Tactic struct {
	Tactic    string `json:"tactic"`
	Rationale string `json:"rationale"`
	Example   string `json:"example"`
}

// GlobalSummary is the structured output of the cross-partner synthesis call.
type GlobalSummary struct {
	CommonPatterns           []string `json:"common_patterns,omitempty"`
	TopTactics               []Tactic `json:"top_tactics,omitempty"`
	ToneSpectrum             string   `json:"tone_spectrum,omitempty"`
	ContentMixRecommendation string   `json:"content_mix_recommendation,omitempty"`
	OverallSummary           string   `json:"overall_summary,omitempty"`
	Raw                      string   `json:"raw_response,omitempty"`
	Error                    string   `json:"error,omitempty"`
}
