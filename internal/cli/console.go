package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/schollz/progressbar/v3"
)

// console serializes output of the prompt loop and of consultation events,
// which may arrive from the poll goroutine
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) Println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

// Publish prints consultation events. User messages are already on screen.
func (c *console) Publish(_ context.Context, event entity.ConsultationEvent) {
	switch event.Type {
	case entity.EventTypeMessage:
		if event.Message == nil || event.Message.Role == entity.RoleUser || event.Message.Content == "" {
			return
		}
		if event.Message.Role == entity.RoleSystem {
			c.Printf("! %s\n", event.Message.Content)
			return
		}
		c.Printf("\nassistant> %s\n\n", event.Message.Content)
	case entity.EventTypeTransition:
		if event.Transition != nil {
			c.Printf("-> stage %d: %s\n", event.Transition.ToStageNumber, event.Transition.ToStageName)
		}
	case entity.EventTypeNotice:
		if event.Notice != nil {
			c.Printf("[%s] %s\n", event.Notice.Level, event.Notice.Text)
		}
	case entity.EventTypeCompleted:
		c.Println("All stages are complete.")
	}
}

// Progress draws the stage progress bar
func (c *console) Progress(view entity.ConsultationView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := view.Progress
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(fmt.Sprintf("Stage %d/%d %s", p.CurrentStageNumber, p.TotalStages, p.StageName)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
	)
	_ = bar.Set(p.Percent())
	fmt.Fprintln(c.out)

	var missing []string
	for _, g := range view.Guidance {
		if g.Required && !g.Provided {
			missing = append(missing, g.Name)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(c.out, "still needed: %s\n", strings.Join(missing, ", "))
	}
}

func (c *console) Summary(summary entity.ConsultationSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "Summary of %s\n", summary.TemplateName)

	keys := make([]string, 0, len(summary.Summary))
	for k := range summary.Summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(c.out, "  %s: %v\n", k, summary.Summary[k])
	}
}
