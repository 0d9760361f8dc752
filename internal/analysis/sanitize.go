package analysis

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/engagelens/pkg/models"
)

const redactedMarker = "[redacted]"

// Sanitizer scrubs credential-looking strings from post text before it
// leaves the process. Posts are public, but people do paste tokens into
// them, and those must not be forwarded to a model provider.
type Sanitizer struct {
	detector *detect.Detector
	log      zerolog.Logger
}

// NewSanitizer builds a sanitizer on the default secret-detection ruleset.
func NewSanitizer(log zerolog.Logger) (*Sanitizer, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading secret detection rules: %w", err)
	}
	return &Sanitizer{detector: detector, log: log}, nil
}

// Scrub replaces every detected secret in text with a redaction marker.
func (s *Sanitizer) Scrub(text string) string {
	findings := s.detector.DetectString(text)
	for _, finding := range findings {
		if finding.Secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, finding.Secret, redactedMarker)
		s.log.Warn().Str("rule", finding.RuleID).Msg("redacted a credential-looking string from post text")
	}
	return text
}

// ScrubPosts returns a copy of posts with secrets removed from their text.
// The input is never modified.
func (s *Sanitizer) ScrubPosts(posts []models.PartnerPost) []models.PartnerPost {
	out := make([]models.PartnerPost, len(posts))
	copy(out, posts)
	for i := range out {
		out[i].Text = s.Scrub(out[i].Text)
	}
	return out
}
