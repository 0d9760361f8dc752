// Package report renders a completed run as a JSON artifact and a Markdown
// digest. It is a pure consumer: everything it shows was produced upstream,
// including the degraded forms (empty post lists, raw or failed analyses).
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/engagelens/pkg/models"
)

const timestampLayout = "20060102_150405"

// PartnerSection bundles everything the report shows for one ranked partner.
type PartnerSection struct {
	Partner  models.RankedPartner    `json:"partner"`
	Score    models.InteractionScore `json:"interaction_score"`
	Posts    []models.PartnerPost    `json:"top_posts"`
	Analysis *models.PartnerAnalysis `json:"analysis,omitempty"`
}

// Report is the final artifact of a run.
type Report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	RunID       string                `json:"run_id,omitempty"`
	Target      models.Account        `json:"target"`
	Partners    []PartnerSection      `json:"partners"`
	Summary     *models.GlobalSummary `json:"global_summary,omitempty"`
}

// WriteFiles renders both artifacts into dir and returns their paths.
func (r *Report) WriteFiles(dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}

	stamp := r.GeneratedAt.Format(timestampLayout)

	jsonPath := filepath.Join(dir, fmt.Sprintf("report_%s.json", stamp))
	encoded, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(jsonPath, encoded, 0o644); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", jsonPath, err)
	}

	mdPath := filepath.Join(dir, fmt.Sprintf("report_%s.md", stamp))
	if err := os.WriteFile(mdPath, []byte(r.RenderMarkdown()), 0o644); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", mdPath, err)
	}

	return jsonPath, mdPath, nil
}

// RenderMarkdown produces the human-readable digest: global synthesis first,
// then one section per ranked partner.
func (r *Report) RenderMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Engagement report for @%s\n\n", r.Target.Handle)
	fmt.Fprintf(&b, "Generated %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Target: %d followers, %d following, %d posts\n\n",
		r.Target.Followers, r.Target.Following, r.Target.PostCount)

	if r.Summary != nil {
		b.WriteString("## What works across your top partners\n\n")
		writeSummary(&b, r.Summary)
	}

	b.WriteString("## Ranked partners\n\n")
	for _, section := range r.Partners {
		writePartner(&b, section)
	}

	return b.String()
}

func writeSummary(b *strings.Builder, s *models.GlobalSummary) {
	if s.Error != "" {
		fmt.Fprintf(b, "_Synthesis unavailable: %s_\n\n", s.Error)
		return
	}
	if s.Raw != "" {
		b.WriteString(s.Raw)
		b.WriteString("\n\n")
		return
	}

	if s.OverallSummary != "" {
		b.WriteString(s.OverallSummary)
		b.WriteString("\n\n")
	}
	if len(s.CommonPatterns) > 0 {
		b.WriteString("**Common patterns:**\n\n")
		for _, pattern := range s.CommonPatterns {
			fmt.Fprintf(b, "- %s\n", pattern)
		}
		b.WriteString("\n")
	}
	if len(s.TopTactics) > 0 {
		b.WriteString("**Top tactics:**\n\n")
		for i, tactic := range s.TopTactics {
			fmt.Fprintf(b, "%d. **%s**: %s\n", i+1, tactic.Tactic, tactic.Rationale)
			if tactic.Example != "" {
				fmt.Fprintf(b, "   Example: %s\n", tactic.Example)
			}
		}
		b.WriteString("\n")
	}
	if s.ToneSpectrum != "" {
		fmt.Fprintf(b, "**Tone spectrum:** %s\n\n", s.ToneSpectrum)
	}
	if s.ContentMixRecommendation != "" {
		fmt.Fprintf(b, "**Recommended content mix:** %s\n\n", s.ContentMixRecommendation)
	}
}

func writePartner(b *strings.Builder, section PartnerSection) {
	partner := section.Partner

	name := partner.Handle
	if name == "" {
		name = partner.CounterpartID
	}
	fmt.Fprintf(b, "### %d. @%s", partner.Rank, name)
	if partner.DisplayName != "" {
		fmt.Fprintf(b, " (%s)", partner.DisplayName)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(b, "Interaction score %.1f, %d followers\n\n", partner.Score, partner.Followers)
	if partner.Bio != "" {
		fmt.Fprintf(b, "> %s\n\n", partner.Bio)
	}
	if breakdown := formatBreakdown(section.Score.Breakdown); breakdown != "" {
		fmt.Fprintf(b, "Signals: %s\n\n", breakdown)
	}

	if len(section.Posts) == 0 {
		b.WriteString("_No recent posts available._\n\n")
	} else {
		b.WriteString("**Top posts:**\n\n")
		for _, post := range section.Posts {
			fmt.Fprintf(b, "- (%.1f engagement, %.2f per 1k followers) %s\n",
				post.Score, post.NormalizedScore, post.Text)
		}
		b.WriteString("\n")
	}

	if section.Analysis != nil {
		writeAnalysis(b, section.Analysis)
	}
}

func writeAnalysis(b *strings.Builder, analysis *models.PartnerAnalysis) {
	if analysis.Error != "" {
		fmt.Fprintf(b, "_Analysis unavailable: %s_\n\n", analysis.Error)
		return
	}
	if analysis.Raw != "" {
		b.WriteString("**Analysis (unstructured):**\n\n")
		b.WriteString(analysis.Raw)
		b.WriteString("\n\n")
		return
	}

	if analysis.Tone != "" {
		fmt.Fprintf(b, "**Tone:** %s\n\n", analysis.Tone)
	}
	if len(analysis.Patterns) > 0 {
		b.WriteString("**Patterns:**\n\n")
		for _, pattern := range analysis.Patterns {
			fmt.Fprintf(b, "- %s\n", pattern)
		}
		b.WriteString("\n")
	}
	if len(analysis.ContentTypes) > 0 {
		fmt.Fprintf(b, "**Content types:** %s\n\n", strings.Join(analysis.ContentTypes, ", "))
	}
	if analysis.HookAnalysis != "" {
		fmt.Fprintf(b, "**Hooks:** %s\n\n", analysis.HookAnalysis)
	}
	if len(analysis.BestPractices) > 0 {
		b.WriteString("**Worth copying:**\n\n")
		for _, practice := range analysis.BestPractices {
			fmt.Fprintf(b, "- %s\n", practice)
		}
		b.WriteString("\n")
	}
}

// formatBreakdown renders the per-kind record counts in a fixed order.
func formatBreakdown(breakdown map[models.InteractionKind]int) string {
	order := []models.InteractionKind{
		models.KindReply,
		models.KindQuote,
		models.KindRetweet,
		models.KindMention,
		models.KindLike,
	}

	parts := make([]string, 0, len(breakdown))
	for _, kind := range order {
		if n := breakdown[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kindLabel(kind, n)))
		}
	}
	return strings.Join(parts, ", ")
}

func kindLabel(kind models.InteractionKind, n int) string {
	label := string(kind)
	if n == 1 {
		return label
	}
	if kind == models.KindReply {
		return "replies"
	}
	return label + "s"
}
