package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundimports/pricelens/pkg/metrics"
)

// Issue names recorded in learning history.
const (
	issueLowConfidence  = "low_confidence"
	issueLowExtraction  = "low_extraction_count"
	issueSlowProcessing = "slow_processing"
)

// Issue thresholds and mutation bounds.
const (
	lowConfidenceBelow    = 0.7
	lowExtractionBelow    = 5
	slowProcessingAbove   = 30 * time.Second
	confidenceFloor       = 0.5
	confidenceStep        = 0.1
	processingTimeCeil    = 60 * time.Second
	recentConfidenceLimit = 10
	casRetries            = 3
)

// Outcome reports one extraction run against a template. Score and
// Confidence are in [0,1].
type Outcome struct {
	Score          float64
	Confidence     float64
	ProductCount   int
	ProcessingTime time.Duration
	Succeeded      bool
	Method         string
}

// UpdateTemplate folds an outcome into the template's rolling performance
// and, for weak outcomes, applies one bounded mutation per detected issue
// and bumps the patch version. Updates go through revision CAS: on a
// conflict the template is re-read and the outcome re-applied, because
// concurrent runs for the same supplier legitimately race here.
func (m *Matcher) UpdateTemplate(ctx context.Context, templateID string, outcome Outcome) error {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		current, err := m.templates.Get(ctx, templateID)
		if err != nil {
			return fmt.Errorf("read template %q: %w", templateID, err)
		}

		updated := current.Clone()
		m.applyOutcome(updated, outcome)

		err = m.templates.Update(ctx, updated)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTemplateConflict) {
			return fmt.Errorf("update template %q: %w", templateID, err)
		}
		lastErr = err
		m.logger.DebugContext(ctx, "template update conflict, retrying",
			slog.String("template", templateID),
			slog.Int("attempt", attempt+1),
		)
	}
	return fmt.Errorf("update template %q: %w", templateID, lastErr)
}

func (m *Matcher) applyOutcome(t *Template, outcome Outcome) {
	now := m.now()
	perf := &t.Performance

	perf.UsageCount++
	if outcome.Succeeded {
		perf.SuccessCount++
	}
	n := float64(perf.UsageCount)
	perf.AverageScore += (outcome.Score - perf.AverageScore) / n
	perf.AverageProductCount += (float64(outcome.ProductCount) - perf.AverageProductCount) / n
	perf.AverageProcessingTime += (outcome.ProcessingTime - perf.AverageProcessingTime) / time.Duration(perf.UsageCount)

	perf.RecentConfidences = append(perf.RecentConfidences, outcome.Confidence)
	if len(perf.RecentConfidences) > recentConfidenceLimit {
		perf.RecentConfidences = perf.RecentConfidences[len(perf.RecentConfidences)-recentConfidenceLimit:]
	}
	perf.LastUsedAt = now
	t.UpdatedAt = now

	if outcome.Score >= learningThreshold {
		return
	}

	issues := classifyIssues(outcome)
	if len(issues) == 0 {
		return
	}
	mutations := mutate(&t.Config, issues)
	if len(mutations) > 0 {
		metrics.TemplateMutations.WithLabelValues(t.SupplierKey).Add(float64(len(mutations)))
	}
	t.Version = t.Version.BumpPatch()
	t.LearningHistory = append(t.LearningHistory, LearningEvent{
		At:        now,
		Score:     outcome.Score,
		Issues:    issues,
		Mutations: mutations,
	})
}

func classifyIssues(outcome Outcome) []string {
	var issues []string
	if outcome.Confidence < lowConfidenceBelow {
		issues = append(issues, issueLowConfidence)
	}
	if outcome.ProductCount < lowExtractionBelow {
		issues = append(issues, issueLowExtraction)
	}
	if outcome.ProcessingTime > slowProcessingAbove {
		issues = append(issues, issueSlowProcessing)
	}
	return issues
}

// mutate applies one bounded config change per issue and reports what
// changed.
func mutate(cfg *Config, issues []string) []string {
	var applied []string
	for _, issue := range issues {
		switch issue {
		case issueLowConfidence:
			if cfg.ConfidenceThreshold > confidenceFloor {
				cfg.ConfidenceThreshold -= confidenceStep
				if cfg.ConfidenceThreshold < confidenceFloor {
					cfg.ConfidenceThreshold = confidenceFloor
				}
				applied = append(applied, "lowered confidence threshold")
			}
		case issueLowExtraction:
			if cfg.Strategy != StrategyAggressive {
				cfg.Strategy = StrategyAggressive
				applied = append(applied, "switched to aggressive strategy")
			}
		case issueSlowProcessing:
			if cfg.MaxProcessingTime < processingTimeCeil {
				cfg.MaxProcessingTime = cfg.MaxProcessingTime * 3 / 2
				if cfg.MaxProcessingTime > processingTimeCeil {
					cfg.MaxProcessingTime = processingTimeCeil
				}
				applied = append(applied, "raised processing time limit")
			}
		}
	}
	return applied
}
