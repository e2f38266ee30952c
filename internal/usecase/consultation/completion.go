package consultation

import "github.com/futig/sla-consultant/internal/entity"

// IsComplete is true when any of the completion signals is present. The
// payload formats fill these fields inconsistently, so one is enough.
func IsComplete(p entity.CanonicalProgress) bool {
	if p.CurrentStageNumber > p.TotalStages {
		return true
	}
	if p.CurrentStageNumber >= p.TotalStages && len(p.CompletedStageIDs) >= p.TotalStages {
		return true
	}
	return p.ProgressPercentage == 100
}
