package consultation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
)

const (
	msgNoReply             = "The system responded but did not provide a message."
	msgNoStructuredReply   = "The system processed your input but did not provide a response message."
	msgNoReplyContent      = "No response content"
	msgSendFailed          = "There was an error communicating with the server. Please try again."
	msgStructuredFailed    = "There was an error submitting your data. Please try again."
	msgStageRequirementMet = "Stage requirements met! You can proceed to the next stage."
	msgForceSucceeded      = "Successfully advanced to the next stage"
	msgForceFailed         = "Failed to advance to the next stage: "
	msgCompleted           = "All stages have been completed. You can now export your results."
	defaultForcedStageName = "Next Stage"
)

// replyText extracts the assistant text. The message is either a string or
// an object carrying content.
func replyText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || !truthy(raw) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		if content, _ := stringField(obj["content"]); content != "" {
			return content, true
		}
		return msgNoReplyContent, true
	}

	return string(raw), true
}

// formatStructuredData renders a submission as the user's chat entry
func formatStructuredData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("### Structured Input:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "**%s**: %s\n", titleKey(k), formatValue(data[k]))
	}
	return b.String()
}

func titleKey(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func buildGuidance(tpl *entity.Template, stageID string, provided entity.ProvidedInformation) []entity.GuidanceItem {
	stage, _, ok := tpl.StageByID(stageID)
	if !ok {
		return []entity.GuidanceItem{}
	}

	items := make([]entity.GuidanceItem, 0, len(stage.ExpectedOutputs))
	for _, out := range stage.ExpectedOutputs {
		items = append(items, entity.GuidanceItem{
			Name:        out.Name,
			Description: out.Description,
			Required:    out.Required,
			Provided:    provided[out.Name],
		})
	}
	return items
}

// MissingRequired lists required outputs not yet provided
func MissingRequired(guidance []entity.GuidanceItem) []string {
	var missing []string
	for _, g := range guidance {
		if g.Required && !g.Provided {
			missing = append(missing, g.Name)
		}
	}
	return missing
}
