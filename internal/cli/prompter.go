package cli

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

var errValueRequired = errors.New("a value is required")

type terminalPrompter struct{}

// NewTerminalPrompter prompts on stdin and stdout
func NewTerminalPrompter() Prompter {
	return terminalPrompter{}
}

func (terminalPrompter) Text(label string, required bool) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		AllowEdit: true,
	}
	if required {
		p.Validate = func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errValueRequired
			}
			return nil
		}
	}

	result, err := p.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

func (terminalPrompter) Choose(label string, items []string) (int, error) {
	s := promptui.Select{
		Label: label,
		Items: items,
		Size:  min(max(len(items), 1), 10),
	}
	i, _, err := s.Run()
	return i, err
}

// isAbort reports whether the user left the prompt with Ctrl-C or Ctrl-D
func isAbort(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF)
}
