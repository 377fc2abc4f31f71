package sweep

import "blobsim/internal/engine"

// TrialFailure records one failed trial against its grid point. Failures
// are accounted for explicitly, never silently dropped.
type TrialFailure struct {
	Trial int
	Err   string
}

// PointSummary is the aggregated statistic bundle for one grid point.
// Mean and variance cover the final population sizes of valid trials
// only; the failed count is reported alongside so the aggregates are
// never silently biased by omission.
type PointSummary struct {
	Point          Point
	MeanFinal      float64
	Variance       float64
	ExtinctionRate float64
	ValidTrials    int
	FailedTrials   int
	AllFailed      bool
	Failures       []TrialFailure
}

type trialOutcome struct {
	trial     int
	result    engine.TrialResult
	err       error
	attempted bool
}

// summarizePoint folds one point's outcomes, in trial-index order, into
// its summary bundle. Accumulating in a fixed order keeps the floating
// point results independent of worker scheduling.
func summarizePoint(point Point, trialsPerPoint int, outcomes []trialOutcome) PointSummary {
	summary := PointSummary{Point: point}

	extinct := 0
	attempted := 0
	mean := 0.0
	m2 := 0.0
	for _, outcome := range outcomes {
		if !outcome.attempted {
			continue
		}
		attempted++
		if outcome.err != nil {
			summary.FailedTrials++
			summary.Failures = append(summary.Failures, TrialFailure{Trial: outcome.trial, Err: outcome.err.Error()})
			continue
		}
		summary.ValidTrials++
		if outcome.result.Terminal == engine.TerminalExtinct {
			extinct++
		}
		// Welford update over final population sizes.
		final := float64(outcome.result.FinalSize)
		delta := final - mean
		mean += delta / float64(summary.ValidTrials)
		m2 += delta * (final - mean)
	}

	if summary.ValidTrials > 0 {
		summary.MeanFinal = mean
	}
	if summary.ValidTrials > 1 {
		summary.Variance = m2 / float64(summary.ValidTrials-1)
	}
	if trialsPerPoint > 0 {
		summary.ExtinctionRate = float64(extinct) / float64(trialsPerPoint)
	}
	summary.AllFailed = attempted > 0 && summary.ValidTrials == 0
	return summary
}
