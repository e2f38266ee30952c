package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Backend is what the commands run against
type Backend struct {
	Consultations ConsultationUsecase
	Templates     TemplateSource
	Logger        *zap.Logger
	Close         func()
}

// Factory builds a backend for the given environment
type Factory func(environment string) (*Backend, error)

// NewRootCommand builds the consult command tree
func NewRootCommand(factory Factory) *cobra.Command {
	var environment string

	root := &cobra.Command{
		Use:   "consult",
		Short: "Walk through an SLA template consultation in the terminal",
		Long: `consult runs a staged consultation against the Consultation API
(or the bundled mock backend when ENABLE_MOCKS=true), asking free-text
questions and structured forms until every template stage is covered.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&environment, "env", "local", "environment to load (.env.<env>)")

	root.AddCommand(
		newRunCommand(factory, &environment),
		newTemplatesCommand(factory, &environment),
	)

	return root
}

func newRunCommand(factory Factory, environment *string) *cobra.Command {
	var templateID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive consultation",
		Long: `Start an interactive consultation.

Type your answers at the prompt. Commands:
  :force     skip to the next stage
  :progress  show the current stage
  :summary   show the collected results
  :quit      leave the consultation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := factory(*environment)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := NewSession(backend.Consultations, NewTerminalPrompter(), cmd.OutOrStdout())
			return session.Run(ctx, templateID)
		},
	}
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "template id")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func newTemplatesCommand(factory Factory, environment *string) *cobra.Command {
	templates := &cobra.Command{
		Use:   "templates",
		Short: "Inspect consultation templates",
	}

	templates.AddCommand(&cobra.Command{
		Use:   "show <template_id>",
		Short: "Print a template as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := factory(*environment)
			if err != nil {
				return err
			}
			defer backend.Close()

			return showTemplate(cmd.Context(), backend.Templates, args[0], cmd)
		},
	})

	return templates
}

func showTemplate(ctx context.Context, templates TemplateSource, id string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tpl, err := templates.GetTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("get template %s: %w", id, err)
	}

	out, err := yaml.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}
