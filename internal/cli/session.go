package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
)

const (
	cmdQuit     = ":quit"
	cmdForce    = ":force"
	cmdSummary  = ":summary"
	cmdProgress = ":progress"
)

// Session runs one consultation in the terminal
type Session struct {
	usecase  ConsultationUsecase
	prompter Prompter
	console  *console
}

func NewSession(usecase ConsultationUsecase, prompter Prompter, out io.Writer) *Session {
	return &Session{
		usecase:  usecase,
		prompter: prompter,
		console:  newConsole(out),
	}
}

// Run starts the consultation and loops until it completes or the user quits
func (s *Session) Run(ctx context.Context, templateID string) error {
	o, err := s.usecase.Start(ctx, templateID, s.console)
	if err != nil {
		return fmt.Errorf("start consultation: %w", err)
	}
	id := o.ID()
	defer func() { _ = s.usecase.Close(id) }()

	view := o.View()
	s.console.Progress(view)
	stage := view.Progress.StageID

	for !view.Completed {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var next entity.ConsultationView
		if view.StructuredInput.Active() {
			data, err := s.fillForm(view.StructuredInput)
			if err != nil {
				if isAbort(err) {
					return nil
				}
				return err
			}
			next, err = s.usecase.SubmitStructured(ctx, id, data)
			if s.report(err) {
				continue
			}
		} else {
			line, err := s.prompter.Text("you", true)
			if err != nil {
				if isAbort(err) {
					return nil
				}
				return err
			}

			switch strings.ToLower(line) {
			case cmdQuit:
				return nil
			case cmdProgress:
				s.console.Progress(view)
				continue
			case cmdSummary:
				s.showSummary(id)
				continue
			case cmdForce:
				next, err = s.usecase.ForceNextStage(ctx, id)
			default:
				next, err = s.usecase.SendFreeText(ctx, id, line)
			}
			if s.report(err) {
				continue
			}
		}

		view = next
		if view.Progress.StageID != stage {
			stage = view.Progress.StageID
			s.console.Progress(view)
		}
	}

	s.console.Progress(view)
	s.showSummary(id)
	return nil
}

// report prints errors the consultation has not published itself and
// tells whether the turn failed
func (s *Session) report(err error) bool {
	if err == nil {
		return false
	}
	if isLocalError(err) {
		s.console.Printf("! %v\n", err)
	}
	return true
}

func (s *Session) showSummary(id string) {
	summary, err := s.usecase.Summary(id)
	if err != nil {
		if errors.Is(err, entity.ErrConsultationNotReady) {
			s.console.Println("The consultation is not completed yet.")
			return
		}
		s.console.Printf("! %v\n", err)
		return
	}
	s.console.Summary(summary)
}

// fillForm asks each field of the form in order
func (s *Session) fillForm(input entity.StructuredInput) (map[string]any, error) {
	if input.Prompt != "" {
		s.console.Println(input.Prompt)
	}

	data := make(map[string]any, len(input.Fields))
	for _, field := range input.Fields {
		value, err := s.askField(field)
		if err != nil {
			return nil, err
		}
		if value != nil {
			data[field.ID] = value
		}
	}
	return data, nil
}

const (
	itemSkip = "(skip)"
	itemDone = "(done)"
)

func (s *Session) askField(field entity.StructuredInputField) (any, error) {
	label := field.Label
	if field.Required {
		label += " *"
	}

	switch {
	case field.Type == entity.FieldTypeCheckbox:
		return s.askCheckbox(field, label)
	case field.Type.HasOptions():
		items := optionLabels(field.Options)
		if !field.Required {
			items = append(items, itemSkip)
		}
		i, err := s.prompter.Choose(label, items)
		if err != nil {
			return nil, err
		}
		if i >= len(field.Options) {
			return nil, nil
		}
		return field.Options[i].Value, nil
	default:
		text, err := s.prompter.Text(label, field.Required)
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, nil
		}
		return text, nil
	}
}

// askCheckbox toggles options until the user picks done
func (s *Session) askCheckbox(field entity.StructuredInputField, label string) (any, error) {
	var selected []string
	for {
		items := make([]string, 0, len(field.Options)+1)
		for _, opt := range field.Options {
			mark := "[ ] "
			if slices.Contains(selected, opt.Value) {
				mark = "[x] "
			}
			items = append(items, mark+opt.Label)
		}
		items = append(items, itemDone)

		i, err := s.prompter.Choose(label, items)
		if err != nil {
			return nil, err
		}
		if i >= len(field.Options) {
			if field.Required && len(selected) == 0 {
				s.console.Println("Select at least one option.")
				continue
			}
			break
		}

		value := field.Options[i].Value
		if j := slices.Index(selected, value); j >= 0 {
			selected = slices.Delete(selected, j, j+1)
		} else {
			selected = append(selected, value)
		}
	}

	if len(selected) == 0 {
		return nil, nil
	}
	values := make([]any, len(selected))
	for i, v := range selected {
		values[i] = v
	}
	return values, nil
}

func optionLabels(options []entity.FieldOption) []string {
	labels := make([]string, 0, len(options))
	for _, opt := range options {
		labels = append(labels, opt.Label)
	}
	return labels
}

var localErrors = []error{
	entity.ErrConsultationNotFound,
	entity.ErrConsultationClosed,
	entity.ErrConsultationCompleted,
	entity.ErrRequestInFlight,
	entity.ErrNoSession,
	entity.ErrInvalidStructuredInput,
	entity.ErrMissingField,
}

// isLocalError reports errors raised before any backend call. Backend
// failures reach the console as system messages.
func isLocalError(err error) bool {
	for _, target := range localErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
