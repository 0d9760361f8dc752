package analysis

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/engagelens/internal/llm"
	"github.com/engagelens/pkg/models"
)

// Generator produces a completion for a prompt. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer runs the per-partner analysis and the global synthesis pass.
type Analyzer struct {
	gen       Generator
	sanitizer *Sanitizer
	log       zerolog.Logger
}

// NewAnalyzer creates an analyzer. Post text is passed through the sanitizer
// before reaching the model.
func NewAnalyzer(gen Generator, sanitizer *Sanitizer, log zerolog.Logger) *Analyzer {
	return &Analyzer{gen: gen, sanitizer: sanitizer, log: log}
}

// AnalyzePartner asks the model why this partner's top posts earn
// engagement. A failed call or an unparseable response is recorded inside
// the result; the run always continues.
func (a *Analyzer) AnalyzePartner(ctx context.Context, partner models.RankedPartner, posts []models.PartnerPost) models.PartnerAnalysis {
	handle := displayHandle(partner)
	prompt := BuildPartnerPrompt(partner, a.sanitizer.ScrubPosts(posts))

	response, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.log.Warn().Err(err).Str("partner", handle).Msg("partner analysis failed")
		return models.PartnerAnalysis{Handle: handle, Error: err.Error()}
	}

	var analysis models.PartnerAnalysis
	if err := decodeResponse(response, &analysis); err != nil || partnerAnalysisEmpty(analysis) {
		a.log.Warn().Str("partner", handle).Msg("partner analysis not parseable, keeping raw text")
		return models.PartnerAnalysis{Handle: handle, Raw: response}
	}

	analysis.Handle = handle
	analysis.Raw = ""
	analysis.Error = ""
	return analysis
}

// Synthesize runs the cross-partner pass over the usable analyses. Analyses
// whose model call failed outright contribute nothing; raw-text analyses
// still do.
func (a *Analyzer) Synthesize(ctx context.Context, target string, analyses []models.PartnerAnalysis) models.GlobalSummary {
	usable := make([]models.PartnerAnalysis, 0, len(analyses))
	for _, analysis := range analyses {
		if analysis.Error != "" {
			continue
		}
		usable = append(usable, analysis)
	}
	if len(usable) == 0 {
		a.log.Warn().Msg("no usable partner analyses, skipping global synthesis")
		return models.GlobalSummary{Error: "no usable partner analyses"}
	}

	response, err := a.gen.Generate(ctx, BuildSummaryPrompt(target, usable))
	if err != nil {
		a.log.Warn().Err(err).Msg("global synthesis failed")
		return models.GlobalSummary{Error: err.Error()}
	}

	var summary models.GlobalSummary
	if err := decodeResponse(response, &summary); err != nil || globalSummaryEmpty(summary) {
		a.log.Warn().Msg("global synthesis not parseable, keeping raw text")
		return models.GlobalSummary{Raw: response}
	}

	summary.Raw = ""
	summary.Error = ""
	return summary
}

// decodeResponse extracts, repairs, and unmarshals the JSON object inside a
// model response.
func decodeResponse(response string, out any) error {
	repaired, err := llm.RepairJSON(llm.ExtractJSON(response))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), out)
}

// partnerAnalysisEmpty reports whether a decode produced none of the fields
// we asked for. Valid JSON with the wrong shape is as useless as no JSON.
func partnerAnalysisEmpty(a models.PartnerAnalysis) bool {
	return len(a.Patterns) == 0 &&
		a.Tone == "" &&
		len(a.ContentTypes) == 0 &&
		a.HookAnalysis == "" &&
		len(a.BestPractices) == 0
}

func globalSummaryEmpty(s models.GlobalSummary) bool {
	return len(s.CommonPatterns) == 0 &&
		len(s.TopTactics) == 0 &&
		s.ToneSpectrum == "" &&
		s.ContentMixRecommendation == "" &&
		s.OverallSummary == ""
}
