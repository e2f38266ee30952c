package consultation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_Record(t *testing.T) {
	ctx := context.Background()
	tpl := slaTemplate()
	acc := NewAccumulator(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	data := map[string]any{"availability": "99.9"}
	out, ok := acc.Record(ctx, tpl, "s2", data)
	require.True(t, ok)
	assert.Equal(t, "Metrics", out.StageName)
	assert.Equal(t, 2, out.StageNumber)
	assert.False(t, out.Timestamp.IsZero())

	data["availability"] = "changed"
	assert.Equal(t, "99.9", acc.Outputs()[0].Data["availability"])

	_, ok = acc.Record(ctx, tpl, "missing", map[string]any{"a": 1})
	assert.False(t, ok)
	assert.Equal(t, 1, acc.Len())
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	tpl := slaTemplate()

	t.Run("single occurrence stays scalar", func(t *testing.T) {
		acc := NewAccumulator(nil)
		acc.Record(ctx, tpl, "s1", map[string]any{"a": 1})

		assert.Equal(t, map[string]any{"a": 1}, Summarize(acc.Outputs()))
	})

	t.Run("repeated keys accumulate in order", func(t *testing.T) {
		acc := NewAccumulator(nil)
		acc.Record(ctx, tpl, "s1", map[string]any{"a": 1})
		acc.Record(ctx, tpl, "s2", map[string]any{"a": 2})
		acc.Record(ctx, tpl, "s3", map[string]any{"a": 3})

		assert.Equal(t, map[string]any{"a": []any{1, 2, 3}}, Summarize(acc.Outputs()))
	})

	t.Run("arrays concatenate once a list exists", func(t *testing.T) {
		acc := NewAccumulator(nil)
		acc.Record(ctx, tpl, "s1", map[string]any{"tags": []any{"x"}})
		acc.Record(ctx, tpl, "s2", map[string]any{"tags": []any{"y", "z"}})
		acc.Record(ctx, tpl, "s3", map[string]any{"tags": "w"})

		assert.Equal(t, map[string]any{"tags": []any{"x", "y", "z", "w"}}, Summarize(acc.Outputs()))
	})

	t.Run("falsy values are not overwritten", func(t *testing.T) {
		acc := NewAccumulator(nil)
		acc.Record(ctx, tpl, "s1", map[string]any{"count": 0})
		acc.Record(ctx, tpl, "s2", map[string]any{"count": 5})

		assert.Equal(t, map[string]any{"count": []any{0, 5}}, Summarize(acc.Outputs()))
	})

	t.Run("does not alias recorded data", func(t *testing.T) {
		acc := NewAccumulator(nil)
		acc.Record(ctx, tpl, "s1", map[string]any{"tags": []any{"x"}})
		acc.Record(ctx, tpl, "s2", map[string]any{"tags": "y"})

		Summarize(acc.Outputs())
		assert.Equal(t, []any{"x"}, acc.Outputs()[0].Data["tags"])
	})

	t.Run("typed slices concatenate", func(t *testing.T) {
		first := []string{"email", "sms"}
		acc := NewAccumulator(nil)
		acc.Record(ctx, tpl, "s1", map[string]any{"channels": first})
		acc.Record(ctx, tpl, "s2", map[string]any{"channels": []string{"phone"}})
		acc.Record(ctx, tpl, "s3", map[string]any{"channels": "chat"})

		summary := Summarize(acc.Outputs())
		assert.Equal(t, []any{"email", "sms", "phone", "chat"}, summary["channels"])
		assert.Equal(t, []string{"email", "sms"}, first)
		assert.Equal(t, []string{"email", "sms"}, acc.Outputs()[0].Data["channels"])
	})
}
