package consultation

import (
	"fmt"

	"github.com/xaenox/astro-bot/internal/models"
)

// Advancer moves a consultation forward after each resolved exchange.
type Advancer struct {
	Threshold int
	Target    models.Stage
}

func NewAdvancer(threshold int, target models.Stage) (Advancer, error) {
	if threshold < 1 {
		return Advancer{}, fmt.Errorf("threshold must be at least 1, got %d", threshold)
	}
	if target != models.StageAnalysis && target != models.StageReport {
		return Advancer{}, fmt.Errorf("target stage must be analysis or report, got %q", target)
	}
	return Advancer{Threshold: threshold, Target: target}, nil
}

// Advance counts one exchange and returns the resulting stage and count.
// The count grows by exactly one; the stage never moves backwards.
func (a Advancer) Advance(stage models.Stage, count int) (models.Stage, int) {
	count++

	next := stage
	if next == models.StageInitial {
		next = models.StageGathering
	}
	if next == models.StageGathering && count >= a.Threshold {
		next = a.Target
	}

	if next.Rank() < stage.Rank() {
		return stage, count
	}
	return next, count
}
