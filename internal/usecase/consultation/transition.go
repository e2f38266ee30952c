package consultation

import (
	"fmt"

	"github.com/futig/sla-consultant/internal/entity"
)

// DetectTransition reports a stage change between two consecutive progress
// values. Nothing fires on the first computation of a session.
func DetectTransition(prevStageID string, prevStageNumber int, next entity.CanonicalProgress, tpl *entity.Template) *entity.TransitionEvent {
	if prevStageID == next.StageID || prevStageNumber <= 0 {
		return nil
	}

	return &entity.TransitionEvent{
		FromStageNumber: prevStageNumber,
		ToStageNumber:   next.CurrentStageNumber,
		FromStageName:   stageNameAt(tpl, prevStageNumber),
		ToStageName:     stageNameAt(tpl, next.CurrentStageNumber),
		FromStageID:     prevStageID,
		ToStageID:       next.StageID,
	}
}

func transitionMessage(ev *entity.TransitionEvent) string {
	return fmt.Sprintf("✅ Completed: \"%s\"\n\n▶️ Starting: \"%s\"", ev.FromStageName, ev.ToStageName)
}

func transitionNotice(ev *entity.TransitionEvent) string {
	return fmt.Sprintf("Moving to stage %d: %s", ev.ToStageNumber, ev.ToStageName)
}

func stageNameAt(tpl *entity.Template, number int) string {
	if tpl != nil && number >= 1 && number <= len(tpl.Stages) && tpl.Stages[number-1].Name != "" {
		return tpl.Stages[number-1].Name
	}
	return stageLabel(number)
}
