// Package cmd provides the supportctl commands: searches against either
// knowledge source, the manual outline, FAQ samples, one-off answers, health
// and index maintenance.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/supportdesk/supportbot/engine/app"
	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/engine/rag"
	"github.com/supportdesk/supportbot/engine/search"
	"github.com/supportdesk/supportbot/pkg/config"
	"github.com/supportdesk/supportbot/pkg/logging"
)

// FAQSource is the FAQ searcher as the CLI uses it.
type FAQSource interface {
	Search(ctx context.Context, query string, maxResults int, minScore float64) domain.Outcome
	SearchByKeywords(ctx context.Context, keywords []string, maxResults int) domain.Outcome
	Sample(ctx context.Context, count int) domain.Outcome
}

// ManualSource is the manual searcher as the CLI uses it.
type ManualSource interface {
	Search(ctx context.Context, query string, maxResults int, minScore float64) domain.Outcome
	SearchBySection(ctx context.Context, title string, maxResults int) domain.Outcome
	SearchByPageRange(ctx context.Context, query string, start, end, maxResults int) domain.Outcome
	Outline(ctx context.Context) []search.OutlineEntry
}

// Fuser is the fusion engine as the CLI uses it.
type Fuser interface {
	SearchRanked(ctx context.Context, query string, maxTotal int, minScore float64) []domain.SearchResult
	SmartSearch(ctx context.Context, query string, qctx map[string]any) ([]domain.SearchResult, domain.Strategy)
}

// Asker answers questions and reports system status.
type Asker interface {
	Answer(ctx context.Context, q domain.Question) (*domain.AnswerResponse, error)
	Status(ctx context.Context) rag.SystemStatus
}

// IndexAdmin counts and deletes the vector collection.
type IndexAdmin interface {
	Count(ctx context.Context, filter map[string]string) (int, error)
	DeleteCollection(ctx context.Context) error
	Collection() string
}

// Backend bundles what the commands call. Service is nil when no generator
// could be built; GeneratorErr then says why.
type Backend struct {
	FAQ          FAQSource
	Manual       ManualSource
	Fusion       Fuser
	Service      Asker
	GeneratorErr error
	Index        IndexAdmin
	Close        func() error
}

// Builder creates a Backend from configuration.
type Builder func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error)

// DefaultBuilder connects to the configured Qdrant, Ollama and generator.
func DefaultBuilder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	store, err := config.NewStore(cfg.Tunables())
	if err != nil {
		return nil, err
	}
	st, err := app.BuildSearch(ctx, cfg, store, nil, logger)
	if err != nil {
		return nil, err
	}
	b := &Backend{FAQ: st.FAQ, Manual: st.Manual, Fusion: st.Fusion, Index: st.Index, Close: st.Close}
	gen, err := app.NewGenerator(cfg, store)
	if err != nil {
		b.GeneratorErr = err
		return b, nil
	}
	st.AttachService(cfg, gen, nil, logger)
	b.Service = st.Service
	return b, nil
}

type rootOptions struct {
	configPath string
	envFile    string
	format     string
	verbose    bool
}

type env struct {
	opts    *rootOptions
	build   Builder
	cfg     *config.Config
	logger  *slog.Logger
	backend *Backend
}

// NewRootCmd creates the root command. build supplies the backend.
func NewRootCmd(build Builder) *cobra.Command {
	e := &env{opts: &rootOptions{}, build: build}

	cmd := &cobra.Command{
		Use:   "supportctl",
		Short: "Inspect and query the support bot knowledge base",
		Long: `supportctl runs the support bot's retrieval and answer pipeline from the
command line against the configured Qdrant collection.

Examples:
  supportctl search faq "パスワード リセット"
  supportctl search manual "VPN 設定" --pages 10-20
  supportctl ask "経費精算の締め日は？"
  supportctl index count --type faq`,
		SilenceUsage:      true,
		PersistentPreRunE: e.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.backend != nil && e.backend.Close != nil {
				return e.backend.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&e.opts.configPath, "config", os.Getenv("SUPPORTBOT_CONFIG"), "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&e.opts.envFile, "env-file", ".env", "Dotenv file loaded before the config")
	cmd.PersistentFlags().StringVarP(&e.opts.format, "format", "f", "text", "Output format: text, json")
	cmd.PersistentFlags().BoolVarP(&e.opts.verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	cmd.AddCommand(newSearchCmd(e))
	cmd.AddCommand(newOutlineCmd(e))
	cmd.AddCommand(newSampleCmd(e))
	cmd.AddCommand(newAskCmd(e))
	cmd.AddCommand(newHealthCmd(e))
	cmd.AddCommand(newIndexCmd(e))
	return cmd
}

// Execute runs the CLI with the default backend.
func Execute() error {
	return NewRootCmd(DefaultBuilder).Execute()
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	switch e.opts.format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q (want text or json)", e.opts.format)
	}
	if err := config.LoadDotenv(e.opts.envFile); err != nil {
		return err
	}
	cfg, err := config.NewLoader(e.opts.configPath).Load()
	if err != nil {
		return err
	}
	logCfg := cfg.Logging
	logCfg.File = ""
	if !e.opts.verbose {
		logCfg.Level = "error"
	}
	logger, _, err := logging.New(logCfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	e.cfg, e.logger = cfg, logger
	return nil
}

// backendFor builds the backend once per invocation.
func (e *env) backendFor(ctx context.Context) (*Backend, error) {
	if e.backend != nil {
		return e.backend, nil
	}
	b, err := e.build(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.backend = b
	return b, nil
}

func (e *env) service(ctx context.Context) (Asker, error) {
	b, err := e.backendFor(ctx)
	if err != nil {
		return nil, err
	}
	if b.Service == nil {
		if b.GeneratorErr != nil {
			return nil, fmt.Errorf("answer service unavailable: %w", b.GeneratorErr)
		}
		return nil, errors.New("answer service unavailable")
	}
	return b.Service, nil
}
