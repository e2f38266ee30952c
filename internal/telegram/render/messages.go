package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
	pkghttp "github.com/futig/sla-consultant/pkg/http"
	"github.com/sony/gobreaker"
)

const (
	MsgWelcome = `👋 Hi! I will walk you through an SLA template stage by stage.

Answer in your own words, or fill in the forms when I ask for specific values.
Pick a template to begin:`

	MsgHelp = `🤖 Commands:

/start <template_id> - Start a consultation
/progress - Show the current stage and what is still missing
/force - Skip to the next stage
/summary - Show the collected results
/cancel - Abandon the consultation
/help - Show this help`

	MsgNoTemplates        = `📭 No templates are available. Use /start <template_id>.`
	MsgStarting           = `⏳ Starting the consultation...`
	MsgCancelConfirm      = `⚠️ Are you sure? The consultation progress will be lost.`
	MsgCancelled          = `👋 Consultation cancelled. Use /start to begin a new one.`
	MsgContinue           = `👌 Let's continue.`
	MsgFormIntro          = `📝 Please fill in the form below, one field at a time.`
	MsgFormSubmitting     = `⏳ Submitting your answers...`
	MsgFieldSkipped       = `⏭ Skipped.`
	MsgUseButtons         = `👆 Please pick one of the options above.`
	MsgCompleted          = `🎉 All stages are complete!`
	ErrGeneric            = `❌ Something went wrong. Try again or use /start.`
	ErrNoConsultation     = `❌ There is no active consultation. Use /start to begin.`
	ErrBusy               = `⏳ I am still working on your previous message.`
	ErrAlreadyCompleted   = `✅ This consultation is already completed. Use /summary or /start.`
	ErrNotCompleted       = `⏳ The consultation is not completed yet.`
	ErrTemplateNotFound   = `❌ Template not found. Use /start to see the available templates.`
	ErrInvalidInput       = `❌ %s`
	ErrNetworkIssue       = `❌ Connection problem. Please try again later.`
	ErrServiceUnavailable = `❌ The consultation service is temporarily unavailable. Try again in a few minutes.`
	ErrTimeout            = `❌ The request took too long. Please try again.`
	ErrRateLimited        = `⚠️ Too many requests. Please wait a moment.`
)

// RenderEvent formats an orchestrator event as a chat message. User
// messages are not echoed back.
func RenderEvent(event entity.ConsultationEvent) (string, bool) {
	switch event.Type {
	case entity.EventTypeMessage:
		if event.Message == nil || event.Message.Role == entity.RoleUser {
			return "", false
		}
		if event.Message.Role == entity.RoleSystem {
			return "⚠️ " + event.Message.Content, true
		}
		return event.Message.Content, event.Message.Content != ""
	case entity.EventTypeTransition:
		if event.Transition == nil {
			return "", false
		}
		return fmt.Sprintf("➡️ Stage %d: %s", event.Transition.ToStageNumber, event.Transition.ToStageName), true
	case entity.EventTypeNotice:
		if event.Notice == nil {
			return "", false
		}
		return noticeIcon(event.Notice.Level) + " " + event.Notice.Text, true
	case entity.EventTypeCompleted:
		return MsgCompleted, true
	case entity.EventTypeError:
		// errors of primary requests are already shown as system messages
		return "", false
	}
	return "", false
}

// RenderProgress formats the stage progress and the outputs still missing
func RenderProgress(view entity.ConsultationView) string {
	p := view.Progress

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %s\n", view.TemplateName)
	fmt.Fprintf(&sb, "Stage %d of %d: %s\n", p.CurrentStageNumber, p.TotalStages, p.StageName)
	sb.WriteString(renderProgressBar(p.Percent()))

	if len(view.Guidance) > 0 {
		sb.WriteString("\n\nTo cover in this stage:")
		for _, g := range view.Guidance {
			mark := "▫️"
			if g.Provided {
				mark = "✅"
			}
			line := g.Name
			if g.Description != "" {
				line += " - " + g.Description
			}
			if g.Required {
				line += " (required)"
			}
			fmt.Fprintf(&sb, "\n%s %s", mark, line)
		}
	}

	if view.StageCompletion != nil && view.StageCompletion.IsComplete {
		sb.WriteString("\n\n✅ This stage looks complete. Use /force to move on.")
	}

	return sb.String()
}

// RenderSummary formats the collected structured outputs
func RenderSummary(summary entity.ConsultationSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📄 Summary: %s\n", summary.TemplateName)

	if len(summary.Outputs) == 0 {
		sb.WriteString("\nNo structured answers were collected.")
		return sb.String()
	}

	for _, out := range summary.Outputs {
		fmt.Fprintf(&sb, "\n%d. %s\n", out.StageNumber, out.StageName)
		keys := make([]string, 0, len(out.Data))
		for k := range out.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  • %s: %s\n", k, formatValue(out.Data[k]))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// RenderField asks for one form field
func RenderField(field entity.StructuredInputField, number, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✏️ %d/%d %s", number, total, field.Label)
	if field.Required {
		sb.WriteString(" *")
	}
	if field.HelpText != "" {
		fmt.Fprintf(&sb, "\n%s", field.HelpText)
	}
	switch {
	case field.Type == entity.FieldTypeCheckbox:
		sb.WriteString("\nSelect all that apply, then press Done.")
	case field.Type.HasOptions():
		sb.WriteString("\nPick one option.")
	case field.Placeholder != "":
		fmt.Fprintf(&sb, "\nFor example: %s", field.Placeholder)
	}
	return sb.String()
}

// ClassifyError analyzes an error and returns an appropriate user-friendly message
func ClassifyError(err error) string {
	if err == nil {
		return ErrGeneric
	}

	switch {
	case errors.Is(err, entity.ErrConsultationNotFound), errors.Is(err, entity.ErrConsultationClosed):
		return ErrNoConsultation
	case errors.Is(err, entity.ErrRequestInFlight):
		return ErrBusy
	case errors.Is(err, entity.ErrConsultationCompleted):
		return ErrAlreadyCompleted
	case errors.Is(err, entity.ErrConsultationNotReady):
		return ErrNotCompleted
	case errors.Is(err, entity.ErrTemplateNotFound):
		return ErrTemplateNotFound
	case errors.Is(err, entity.ErrInvalidStructuredInput), errors.Is(err, entity.ErrMissingField):
		return fmt.Sprintf(ErrInvalidInput, err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrServiceUnavailable
	}

	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}

	var httpErr *pkghttp.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return ErrRateLimited
		}
		return ErrServiceUnavailable
	}

	// Check for network errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkIssue
	}

	var connErr *pkghttp.NetworkError
	if errors.As(err, &connErr) {
		return ErrNetworkIssue
	}

	return ErrGeneric
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(percent int) string {
	percent = max(0, min(100, percent))
	filled := percent / 10
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("[%s] %d%%", bar, percent)
}

func noticeIcon(level entity.NoticeLevel) string {
	switch level {
	case entity.NoticeLevelSuccess:
		return "✅"
	case entity.NoticeLevelError:
		return "❌"
	default:
		return "ℹ️"
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case nil:
		return "-"
	}
	return fmt.Sprint(v)
}
