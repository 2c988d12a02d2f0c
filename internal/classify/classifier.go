// Package classify assigns category, severity, and confidence to candidates.
//
// The design is deterministic-first: a keyword rule stage always produces a
// usable result, and the optional AI collaborator only runs when the rule
// confidence is low. An unavailable or failing collaborator never degrades a
// record below its rule-stage classification.
package classify

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
)

// Options holds the classifier tuning knobs sourced from config.
type Options struct {
	AmbiguityThreshold int // rule confidence below this triggers AI + flags the record
	FallbackGeoPenalty int // subtracted when the location is a fallback centroid
	SourceWeightAPI    float64
	SourceWeightFeed   float64
	SourceWeightAI     float64
}

// Classifier implements the two-stage category/severity assignment.
type Classifier struct {
	rules    *Rules
	opts     Options
	enhancer Enhancer // nil when no AI collaborator is configured
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func New(rules *Rules, opts Options, enhancer Enhancer, metrics *observability.Metrics, logger *slog.Logger) *Classifier {
	return &Classifier{rules: rules, opts: opts, enhancer: enhancer, metrics: metrics, logger: logger}
}

// magnitudeRe pulls a seismic magnitude out of text, e.g. "M6.2" or
// "magnitude 7.1".
var magnitudeRe = regexp.MustCompile(`\b(?:magnitude|mag|m)\s*(\d+(?:\.\d+)?)\b`)

// Classify fills the candidate's category, severity, and confidence.
// The rule stage always runs; the AI enhancement stage runs only for
// low-confidence records and can only raise confidence, never lower it.
func (c *Classifier) Classify(ctx context.Context, cand domain.Candidate) domain.Candidate {
	text := strings.ToLower(cand.Title + " " + cand.Raw.Body)

	category, matchStrength := c.ruleCategory(cand.Raw.CategoryHint, text)
	severity := c.ruleSeverity(category, text, cand)
	ruleConf := ruleConfidence(matchStrength)

	cand.Category = category
	cand.Severity = severity
	cand.Confidence = c.weighted(ruleConf, cand.Raw.SourceType)
	cand.Ambiguous = ruleConf < c.opts.AmbiguityThreshold

	if cand.Ambiguous && c.enhancer != nil {
		cand = c.enhance(ctx, cand, ruleConf)
	}

	if cand.Location.IsFallback {
		cand.Confidence -= c.opts.FallbackGeoPenalty
	}
	cand.Confidence = clamp(cand.Confidence)
	return cand
}

// ruleCategory scores every category by keyword overlap and picks the winner.
// A typed hint from a structured source wins outright with full strength.
// Ties resolve by the fixed priority order, so the result is independent of
// map iteration order.
func (c *Classifier) ruleCategory(hint domain.Category, text string) (domain.Category, int) {
	if hint != "" && hint != domain.CategoryOther {
		return hint, 4
	}

	best := domain.CategoryOther
	bestScore := 0
	for _, cat := range c.rules.Priority {
		score := 0
		for _, kw := range c.rules.Keywords[cat] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}
	return best, bestScore
}

// ruleSeverity combines magnitude thresholds, casualty counts, and severity
// keyword tiers, taking the strongest signal.
func (c *Classifier) ruleSeverity(category domain.Category, text string, cand domain.Candidate) domain.Severity {
	severity := domain.SeverityLow

	raise := func(s domain.Severity) {
		if s > severity {
			severity = s
		}
	}

	if mag := extractMagnitude(cand.Raw.Magnitude, text); mag > 0 {
		switch {
		case mag >= c.rules.MagnitudeCritical:
			raise(domain.SeverityCritical)
		case mag >= c.rules.MagnitudeHigh:
			raise(domain.SeverityHigh)
		case mag >= c.rules.MagnitudeMedium:
			raise(domain.SeverityMedium)
		}
	}

	switch {
	case cand.AffectedPopulation >= c.rules.CasualtiesCritical:
		raise(domain.SeverityCritical)
	case cand.AffectedPopulation >= c.rules.CasualtiesHigh:
		raise(domain.SeverityHigh)
	case cand.AffectedPopulation > 0:
		raise(domain.SeverityMedium)
	}

	if containsAny(text, c.rules.CriticalTerms) {
		raise(domain.SeverityCritical)
	} else if containsAny(text, c.rules.HighTerms) {
		raise(domain.SeverityHigh)
	} else if containsAny(text, c.rules.MediumTerms) {
		raise(domain.SeverityMedium)
	}

	// Pandemics and famines are never local events.
	if category == domain.CategoryPandemic || category == domain.CategoryFamine {
		raise(domain.SeverityHigh)
	}
	return severity
}

// enhance asks the AI collaborator for an independent estimate. On
// disagreement the AI result is preferred, but the rule-stage result is kept
// on the candidate so merge provenance retains it for audit. Errors leave the
// rule result standing.
func (c *Classifier) enhance(ctx context.Context, cand domain.Candidate, ruleConf int) domain.Candidate {
	est, err := c.enhancer.Classify(ctx, cand.Title+" "+cand.Raw.Body)
	if err != nil {
		c.metrics.AIEnhancements.WithLabelValues("error").Inc()
		c.logger.Debug("ai enhancement unavailable", "source", cand.Raw.SourceID, "error", err)
		return cand
	}

	if est.Category != cand.Category || est.Severity != cand.Severity {
		c.metrics.AIEnhancements.WithLabelValues("applied").Inc()
		cand.RuleOverridden = true
		cand.RuleCategory = cand.Category
		cand.RuleSeverity = cand.Severity
		cand.RuleConfidence = cand.Confidence
		cand.Category = est.Category
		cand.Severity = est.Severity
	} else {
		c.metrics.AIEnhancements.WithLabelValues("skipped").Inc()
	}

	// AI can only raise confidence above the rule stage, never lower it.
	enhanced := c.weighted((ruleConf+est.Confidence)/2, cand.Raw.SourceType)
	if enhanced > cand.Confidence {
		cand.Confidence = enhanced
	}
	cand.Ambiguous = false
	return cand
}

// ruleConfidence maps keyword match strength to a confidence score.
func ruleConfidence(matchStrength int) int {
	if matchStrength == 0 {
		return 20
	}
	return clamp(40 + 15*matchStrength)
}

// weighted applies the per-source-type reliability weight.
func (c *Classifier) weighted(conf int, st domain.SourceType) int {
	w := c.opts.SourceWeightFeed
	switch st {
	case domain.SourceTypeAPI:
		w = c.opts.SourceWeightAPI
	case domain.SourceTypeAI:
		w = c.opts.SourceWeightAI
	}
	return clamp(int(float64(conf) * w))
}

func extractMagnitude(reported float64, text string) float64 {
	if reported > 0 {
		return reported
	}
	m := magnitudeRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	mag, err := strconv.ParseFloat(m[1], 64)
	if err != nil || mag > 10 {
		return 0
	}
	return mag
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
