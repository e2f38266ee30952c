package keyboard

import (
	"fmt"
	"strings"
)

// Callback actions
const (
	ActionTemplate = "tpl"     // start a consultation from a template
	ActionOption   = "opt"     // pick an option of a select or radio field, value is the option index
	ActionToggle   = "chk"     // toggle a checkbox option, value is the option index
	ActionDone     = "done"    // finish a checkbox field
	ActionSkip     = "skip"    // skip an optional field
	ActionConfirm  = "confirm" // "cancel" or "continue"
	ActionStage    = "stage"   // "force", "progress" or "summary"
)

// CallbackData represents parsed callback data
type CallbackData struct {
	Action string
	Value  string
}

// ParseCallback parses callback data string
func ParseCallback(data string) (*CallbackData, error) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("invalid callback format: %s", data)
	}

	return &CallbackData{
		Action: parts[0],
		Value:  parts[1],
	}, nil
}

// EncodeCallback creates callback data string
func EncodeCallback(action, value string) string {
	return fmt.Sprintf("%s:%s", action, value)
}
