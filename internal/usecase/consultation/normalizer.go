package consultation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/futig/sla-consultant/internal/entity"
)

// ProgressPayload is a decoded template_progress object. It is either a
// LegacyProgress or a TransitionProgress.
type ProgressPayload interface {
	progressPayload()
}

// LegacyProgress is the stage-index based payload
type LegacyProgress struct {
	StageID            string
	CurrentStage       *int
	CompletedStages    []string
	ProgressPercentage *float64
	StageCompleted     bool
}

// TransitionProgress is the completed-stage/next-stage payload
type TransitionProgress struct {
	NextStage           NextStage
	CompletedStageIndex int
	CompletedStage      string
	ProgressPercentage  *float64
	StageCompleted      bool
}

// NextStage is the next_stage object of a TransitionProgress
type NextStage struct {
	ID          string
	Name        string
	Description string
}

func (LegacyProgress) progressPayload()     {}
func (TransitionProgress) progressPayload() {}

// DecodeProgressPayload picks the payload shape. next_stage present together
// with a defined completed_stage_index selects TransitionProgress, anything
// else decodes as LegacyProgress. Malformed input yields an empty
// LegacyProgress.
func DecodeProgressPayload(raw json.RawMessage) ProgressPayload {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return LegacyProgress{}
	}

	stageCompleted := isTrue(fields["stage_completed"])
	percentage := numberField(fields["progress_percentage"])

	nextRaw, hasNext := fields["next_stage"]
	indexRaw, hasIndex := fields["completed_stage_index"]
	if hasNext && truthy(nextRaw) && hasIndex {
		payload := TransitionProgress{
			NextStage:          decodeNextStage(nextRaw),
			ProgressPercentage: percentage,
			StageCompleted:     stageCompleted,
		}
		if idx := numberField(indexRaw); idx != nil {
			payload.CompletedStageIndex = boundedInt(*idx)
		}
		if completed, ok := stringField(fields["completed_stage"]); ok && completed != "" {
			payload.CompletedStage = completed
		}
		return payload
	}

	payload := LegacyProgress{
		ProgressPercentage: percentage,
		StageCompleted:     stageCompleted,
	}
	if id, ok := stringField(fields["stage_id"]); ok {
		payload.StageID = id
	}
	if cur := numberField(fields["current_stage"]); cur != nil {
		n := boundedInt(*cur)
		payload.CurrentStage = &n
	}
	payload.CompletedStages = stringList(fields["completed_stages"])
	return payload
}

// Normalize derives canonical progress from a payload and the template.
// prev is only consulted where the payload carries a delta.
func Normalize(payload ProgressPayload, tpl *entity.Template, prev entity.CanonicalProgress) entity.CanonicalProgress {
	total := tpl.TotalStages()

	switch p := payload.(type) {
	case TransitionProgress:
		nextStageIndex := p.CompletedStageIndex + 1
		current := atLeastOne(nextStageIndex + 1)

		out := entity.CanonicalProgress{
			CurrentStageNumber: current,
			TotalStages:        total,
			StageID:            p.NextStage.ID,
			StageName:          p.NextStage.Name,
			StageDescription:   p.NextStage.Description,
			ProgressPercentage: percentage(p.ProgressPercentage, current, total),
			StageJustCompleted: p.StageCompleted,
		}
		if out.StageID == "" {
			out.StageID = fmt.Sprintf("stage_%d", nextStageIndex)
		}
		if out.StageName == "" {
			out.StageName = stageLabel(current)
		}
		if p.CompletedStage != "" {
			out.CompletedStageIDs = []string{p.CompletedStage}
		} else {
			out.CompletedStageIDs = append([]string{}, prev.CompletedStageIDs...)
		}
		return out

	case LegacyProgress:
		current := 1
		if p.CurrentStage != nil {
			current = atLeastOne(*p.CurrentStage)
		}

		out := entity.CanonicalProgress{
			CurrentStageNumber: current,
			TotalStages:        total,
			StageID:            p.StageID,
			StageName:          stageLabel(current),
			ProgressPercentage: percentage(p.ProgressPercentage, current, total),
			CompletedStageIDs:  append([]string{}, p.CompletedStages...),
			StageJustCompleted: p.StageCompleted,
		}
		if stage, _, ok := tpl.StageByID(p.StageID); ok {
			if stage.Name != "" {
				out.StageName = stage.Name
			}
			out.StageDescription = stage.Description
		}
		return out
	}

	return Normalize(LegacyProgress{}, tpl, prev)
}

// DefaultProgressPayload is used when the start response carries no progress
func DefaultProgressPayload(tpl *entity.Template) ProgressPayload {
	one := 1
	payload := LegacyProgress{CurrentStage: &one}
	if tpl != nil && len(tpl.Stages) > 0 {
		payload.StageID = tpl.Stages[0].ID
	}
	return payload
}

// percentage keeps an explicit server value as sent, only clamped. The
// fallback derived from the stage number is rounded.
func percentage(explicit *float64, current, total int) float64 {
	if explicit != nil {
		return clampPercentage(*explicit)
	}
	ratio := float64(current) / float64(total)
	return math.Round(math.Max(0, math.Min(1, ratio)) * 100)
}

func clampPercentage(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// boundedInt converts a JSON number, clamping it to the int32 range so
// absurd values still compare as very large or very small
func boundedInt(f float64) int {
	return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, f)))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func stageLabel(n int) string {
	return "Stage " + strconv.Itoa(n)
}

func decodeNextStage(raw json.RawMessage) NextStage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return NextStage{}
	}
	var ns NextStage
	ns.ID, _ = stringField(fields["id"])
	ns.Name, _ = stringField(fields["name"])
	ns.Description, _ = stringField(fields["description"])
	return ns
}

// stringField accepts a JSON string or number
func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func numberField(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := stringField(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func isTrue(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// truthy treats null, false, 0 and "" as absent
func truthy(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
