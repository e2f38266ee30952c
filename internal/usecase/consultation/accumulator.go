package consultation

import (
	"context"
	"maps"
	"reflect"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Accumulator collects structured submissions in insertion order
type Accumulator struct {
	outputs []entity.StructuredOutput
	now     func() time.Time
}

func NewAccumulator(now func() time.Time) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{now: now}
}

// Record stores a submission for the stage. Unknown stages are dropped.
// Only the top level of data is copied.
func (a *Accumulator) Record(ctx context.Context, tpl *entity.Template, stageID string, data map[string]any) (entity.StructuredOutput, bool) {
	stage, number, ok := tpl.StageByID(stageID)
	if !ok {
		ctxzap.Warn(ctx, "structured output dropped, stage not found in template",
			zap.String("stage_id", stageID),
		)
		return entity.StructuredOutput{}, false
	}

	out := entity.StructuredOutput{
		StageID:     stage.ID,
		StageName:   stage.Name,
		StageNumber: number,
		Data:        maps.Clone(data),
		Timestamp:   a.now(),
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	a.outputs = append(a.outputs, out)

	return out, true
}

// Outputs returns a copy of the recorded outputs
func (a *Accumulator) Outputs() []entity.StructuredOutput {
	return append([]entity.StructuredOutput{}, a.outputs...)
}

func (a *Accumulator) Len() int {
	return len(a.outputs)
}

// Summarize folds all outputs into one mapping. A key seen once keeps its
// value, a repeated key becomes a list of every value given for it.
func Summarize(outputs []entity.StructuredOutput) map[string]any {
	summary := make(map[string]any)

	for _, out := range outputs {
		for key, value := range out.Data {
			existing, seen := summary[key]
			if !seen {
				if list, ok := toList(value); ok {
					value = list
				}
				summary[key] = value
				continue
			}

			if list, ok := existing.([]any); ok {
				if incoming, ok := toList(value); ok {
					summary[key] = append(list, incoming...)
				} else {
					summary[key] = append(list, value)
				}
				continue
			}

			summary[key] = []any{existing, value}
		}
	}

	return summary
}

// toList copies any slice or array value into a fresh []any
func toList(value any) ([]any, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}
