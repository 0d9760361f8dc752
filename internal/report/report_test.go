package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagelens/pkg/models"
)

func fixtureReport() *Report {
	return &Report{
		GeneratedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		RunID:       "run-1",
		Target: models.Account{
			ID: "t0", Handle: "mytarget", Followers: 500, Following: 80, PostCount: 1200,
		},
		Partners: []PartnerSection{
			{
				Partner: models.RankedPartner{
					Rank: 1, CounterpartID: "b2", Score: 25,
					Handle: "bob", DisplayName: "Bob Reed", Bio: "ships daily", Followers: 2000,
				},
				Score: models.InteractionScore{
					CounterpartID: "b2",
					Weight:        25,
					Breakdown: map[models.InteractionKind]int{
						models.KindReply:   5,
						models.KindQuote:   1,
						models.KindRetweet: 1,
					},
				},
				Posts: []models.PartnerPost{
					{ID: "b2-1", Text: "how we doubled signups", Score: 100, NormalizedScore: 50},
					{ID: "b2-3", Text: "small launches beat big ones", Score: 50, NormalizedScore: 25},
				},
				Analysis: &models.PartnerAnalysis{
					Handle:        "bob",
					Tone:          "direct and numbers-heavy",
					Patterns:      []string{"opens with a metric"},
					ContentTypes:  []string{"threads", "case studies"},
					HookAnalysis:  "first line always names a concrete outcome",
					BestPractices: []string{"one idea per post"},
				},
			},
			{
				Partner: models.RankedPartner{Rank: 2, CounterpartID: "c3", Score: 10},
				Score: models.InteractionScore{
					CounterpartID: "c3",
					Weight:        10,
					Breakdown:     map[models.InteractionKind]int{models.KindMention: 10},
				},
			},
		},
		Summary: &models.GlobalSummary{
			OverallSummary: "Your best partners reward specificity.",
			CommonPatterns: []string{"metrics in the first line"},
			TopTactics: []models.Tactic{
				{Tactic: "Lead with the result", Rationale: "earns the second line", Example: "We cut churn 40%"},
			},
			ToneSpectrum:             "direct to playful",
			ContentMixRecommendation: "60% threads, 40% singles",
		},
	}
}

func TestRenderMarkdownFullReport(t *testing.T) {
	md := fixtureReport().RenderMarkdown()

	assert.True(t, strings.HasPrefix(md, "# Engagement report for @mytarget\n"))
	assert.Contains(t, md, "Generated 2025-06-01 12:30 UTC")
	assert.Contains(t, md, "Target: 500 followers, 80 following, 1200 posts")

	// Synthesis renders before the partner sections.
	summaryAt := strings.Index(md, "## What works across your top partners")
	partnersAt := strings.Index(md, "## Ranked partners")
	require.GreaterOrEqual(t, summaryAt, 0)
	require.Greater(t, partnersAt, summaryAt)

	assert.Contains(t, md, "Your best partners reward specificity.")
	assert.Contains(t, md, "1. **Lead with the result**: earns the second line")
	assert.Contains(t, md, "   Example: We cut churn 40%")
	assert.Contains(t, md, "**Tone spectrum:** direct to playful")
	assert.Contains(t, md, "**Recommended content mix:** 60% threads, 40% singles")

	assert.Contains(t, md, "### 1. @bob (Bob Reed)")
	assert.Contains(t, md, "Interaction score 25.0, 2000 followers")
	assert.Contains(t, md, "> ships daily")
	assert.Contains(t, md, "Signals: 5 replies, 1 quote, 1 retweet")
	assert.Contains(t, md, "- (100.0 engagement, 50.00 per 1k followers) how we doubled signups")
	assert.Contains(t, md, "**Tone:** direct and numbers-heavy")
	assert.Contains(t, md, "**Content types:** threads, case studies")
	assert.Contains(t, md, "**Worth copying:**")
}

func TestRenderMarkdownDegradedPartner(t *testing.T) {
	// An unresolved partner renders under its bare id with no posts.
	md := fixtureReport().RenderMarkdown()

	assert.Contains(t, md, "### 2. @c3\n")
	assert.Contains(t, md, "Signals: 10 mentions")
	assert.Contains(t, md, "_No recent posts available._")
}

func TestRenderMarkdownWithoutSummary(t *testing.T) {
	r := fixtureReport()
	r.Summary = nil

	md := r.RenderMarkdown()

	assert.NotContains(t, md, "## What works across your top partners")
	assert.Contains(t, md, "## Ranked partners")
}

func TestRenderMarkdownFailedSummary(t *testing.T) {
	r := fixtureReport()
	r.Summary = &models.GlobalSummary{Error: "generation failed after 3 attempts"}

	md := r.RenderMarkdown()

	assert.Contains(t, md, "_Synthesis unavailable: generation failed after 3 attempts_")
	assert.NotContains(t, md, "**Top tactics:**")
}

func TestRenderMarkdownRawSummary(t *testing.T) {
	r := fixtureReport()
	r.Summary = &models.GlobalSummary{Raw: "The model rambled instead of returning JSON."}

	md := r.RenderMarkdown()

	assert.Contains(t, md, "The model rambled instead of returning JSON.")
	assert.NotContains(t, md, "**Common patterns:**")
}

func TestRenderMarkdownAnalysisFallbacks(t *testing.T) {
	r := fixtureReport()
	r.Partners[0].Analysis = &models.PartnerAnalysis{Raw: "unstructured musings"}
	r.Partners[1].Analysis = &models.PartnerAnalysis{Error: "rate limited"}

	md := r.RenderMarkdown()

	assert.Contains(t, md, "**Analysis (unstructured):**\n\nunstructured musings")
	assert.Contains(t, md, "_Analysis unavailable: rate limited_")
}

func TestWriteFilesRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := fixtureReport()

	jsonPath, mdPath, err := r.WriteFiles(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_20250601_123000.json"), jsonPath)
	assert.Equal(t, filepath.Join(dir, "report_20250601_123000.md"), mdPath)

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "mytarget", decoded.Target.Handle)
	require.Len(t, decoded.Partners, 2)
	assert.Equal(t, "bob", decoded.Partners[0].Partner.Handle)
	require.NotNil(t, decoded.Summary)
	assert.Equal(t, "Your best partners reward specificity.", decoded.Summary.OverallSummary)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Engagement report for @mytarget")
}

func TestFormatBreakdownFixedOrder(t *testing.T) {
	breakdown := map[models.InteractionKind]int{
		models.KindLike:  3,
		models.KindReply: 1,
		models.KindQuote: 2,
	}

	assert.Equal(t, "1 reply, 2 quotes, 3 likes", formatBreakdown(breakdown))
	assert.Equal(t, "", formatBreakdown(nil))
}
