package keyboard

import (
	"slices"
	"strconv"

	"github.com/futig/sla-consultant/internal/entity"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects callback data longer than this
const maxCallbackData = 64

// Builder creates inline keyboards
type Builder struct{}

// NewBuilder creates a keyboard builder
func NewBuilder() *Builder {
	return &Builder{}
}

// TemplatesKeyboard lists templates a consultation can start from
func (b *Builder) TemplatesKeyboard(templates []*entity.Template) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}

	for _, tpl := range templates {
		data := EncodeCallback(ActionTemplate, tpl.ID)
		if len(data) > maxCallbackData {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 "+tpl.Name, data),
		))
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// StageKeyboard offers the stage-level actions
func (b *Builder) StageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Progress", EncodeCallback(ActionStage, "progress")),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Next stage", EncodeCallback(ActionStage, "force")),
		),
	)
}

// SummaryKeyboard is shown once a consultation completes
func (b *Builder) SummaryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📄 Show summary", EncodeCallback(ActionStage, "summary")),
		),
	)
}

// ConfirmCancelKeyboard asks before a consultation is abandoned
func (b *Builder) ConfirmCancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes, cancel", EncodeCallback(ActionConfirm, "cancel")),
			tgbotapi.NewInlineKeyboardButtonData("❌ No, continue", EncodeCallback(ActionConfirm, "continue")),
		),
	)
}

// FieldKeyboard builds the keyboard of a form field. Text fields only get a
// skip button when they are optional. Returns nil when no keyboard is needed.
func (b *Builder) FieldKeyboard(field entity.StructuredInputField, selected []string) *tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}

	switch {
	case field.Type == entity.FieldTypeCheckbox:
		for i, opt := range field.Options {
			label := "⬜ " + opt.Label
			if slices.Contains(selected, opt.Value) {
				label = "✅ " + opt.Label
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, EncodeCallback(ActionToggle, strconv.Itoa(i))),
			))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➡️ Done", EncodeCallback(ActionDone, field.ID)),
		))
	case field.Type.HasOptions():
		for i, opt := range field.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(opt.Label, EncodeCallback(ActionOption, strconv.Itoa(i))),
			))
		}
	}

	if !field.Required && field.Type != entity.FieldTypeCheckbox {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", EncodeCallback(ActionSkip, field.ID)),
		))
	}

	if len(rows) == 0 {
		return nil
	}
	return &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
