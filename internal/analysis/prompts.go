// Package analysis turns ranked partners and their top posts into structured
// engagement insights via a language model. Failures never abort a run; they
// are carried inside the result so the report can render what exists.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/engagelens/pkg/models"
)

// Role definitions
const (
	// PartnerAnalystRole primes the model for single-account analysis.
	PartnerAnalystRole = "You are an expert social media strategist analyzing why specific posts earn engagement"

	// SynthesisRole primes the model for the cross-partner synthesis pass.
	SynthesisRole = "You are an expert social media strategist distilling transferable engagement tactics from several accounts"
)

// Core instruction templates
const (
	// PartnerInstructions provides the main instructions for per-partner analysis.
	PartnerInstructions = `Study the posts above and explain what this account does to earn engagement:
- Name concrete, recurring techniques, not generic advice
- Quote short fragments from the posts as evidence
- Separate what the account posts (content types) from how it writes (tone, hooks)
- Only describe what the posts actually show`

	// SynthesisInstructions provides quality guidelines for the global summary.
	SynthesisInstructions = `IMPORTANT SYNTHESIS GUIDELINES:
- Surface only patterns that appear across several accounts, not one-offs
- Rank tactics by how transferable they are to a different account
- Tie every tactic to the account that demonstrates it best
- Keep the overall summary short and direct`
)

// JSON structure templates
const (
	// PartnerJSONStructure provides the expected per-partner output format.
	PartnerJSONStructure = `Format your response as JSON with the following structure:
` + "```json" + `
{
  "patterns": ["Recurring technique observed across the posts"],
  "tone": "One-line characterization of the account's voice",
  "content_types": ["Formats used: threads, hot takes, questions, announcements, ..."],
  "hook_analysis": "What the opening lines do to stop the scroll",
  "best_practices": ["Actionable takeaway another account could copy"]
}
` + "```"

	// SummaryJSONStructure provides the expected global synthesis format.
	SummaryJSONStructure = `Format your response as JSON with the following structure:
` + "```json" + `
{
  "common_patterns": ["Pattern shared by several of the accounts"],
  "top_tactics": [
    {
      "tactic": "Short name for the tactic",
      "rationale": "Why it works",
      "example": "Which account demonstrates it, with a concrete post"
    }
  ],
  "tone_spectrum": "How the accounts' voices range",
  "content_mix_recommendation": "Posting mix worth emulating",
  "overall_summary": "Three or four sentences tying it together"
}
` + "```"
)

// BuildPartnerPrompt assembles the analysis prompt for one partner account
// and its top posts.
func BuildPartnerPrompt(partner models.RankedPartner, posts []models.PartnerPost) string {
	var b strings.Builder

	b.WriteString(PartnerAnalystRole + ".\n\n")
	b.WriteString(fmt.Sprintf("Account: @%s", displayHandle(partner)))
	if partner.DisplayName != "" {
		b.WriteString(fmt.Sprintf(" (%s)", partner.DisplayName))
	}
	b.WriteString("\n")
	if partner.Bio != "" {
		b.WriteString(fmt.Sprintf("Bio: %s\n", partner.Bio))
	}
	b.WriteString(fmt.Sprintf("Followers: %d\n\n", partner.Followers))

	b.WriteString("Top posts by engagement:\n\n")
	for i, post := range posts {
		b.WriteString(fmt.Sprintf("Post %d (%s): %d likes, %d retweets, %d quotes, %d replies\n",
			i+1, post.CreatedAt.Format("2006-01-02"), post.Likes, post.Retweets, post.Quotes, post.Replies))
		b.WriteString(post.Text)
		b.WriteString("\n\n")
	}

	b.WriteString(PartnerInstructions + "\n\n")
	b.WriteString(PartnerJSONStructure)
	return b.String()
}

// BuildSummaryPrompt assembles the cross-partner synthesis prompt from the
// individual analyses. Unparseable analyses contribute their raw text.
func BuildSummaryPrompt(target string, analyses []models.PartnerAnalysis) string {
	var b strings.Builder

	b.WriteString(SynthesisRole + ".\n\n")
	b.WriteString(fmt.Sprintf("The accounts below are the most engaged partners of @%s. Their individual analyses follow.\n\n", target))

	for _, analysis := range analyses {
		b.WriteString(fmt.Sprintf("## @%s\n", analysis.Handle))
		if analysis.Raw != "" {
			b.WriteString(analysis.Raw)
			b.WriteString("\n\n")
			continue
		}
		encoded, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			continue
		}
		b.Write(encoded)
		b.WriteString("\n\n")
	}

	b.WriteString(SynthesisInstructions + "\n\n")
	b.WriteString(SummaryJSONStructure)
	return b.String()
}

// displayHandle falls back to the counterpart id when profile resolution
// left the handle empty.
func displayHandle(partner models.RankedPartner) string {
	if partner.Handle != "" {
		return partner.Handle
	}
	return partner.CounterpartID
}
