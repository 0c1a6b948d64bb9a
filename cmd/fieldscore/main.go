package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/orchestrator"
	"github.com/zen-systems/fieldscore/pkg/server"
)

var (
	configFile string
	logLevel   string
)

// errAnalysisFailed sets a non-zero exit status after a failure envelope has
// been printed.
var errAnalysisFailed = errors.New("analysis failed")

func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldscore",
		Short: "Score and classify field evidence with multimodal AI providers",
		Long: `fieldscore sends field evidence (photos, story PDFs, challenge
	statements) to Gemini, OpenAI, Claude or Bedrock, and normalizes the replies
	into validated results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to routing config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(thematicCmd())
	rootCmd.AddCommand(storyCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errAnalysisFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func setupLogging() {
	log.SetHandler(cli.New(os.Stderr))
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "warn"
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
		log.WithField("level", level).Warn("unknown log level, using info")
	}
	log.SetLevel(parsed)
}

func evidenceCmd() *cobra.Command {
	var req orchestrator.EvidenceRequest

	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Answer yes/no questions about an evidence image",
		Long: `Sends the image and numbered questions to Gemini, rotating through
	the configured key pool on quota errors. With --fallback the SambaNova
	endpoint is tried when Gemini cannot answer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newOrchestrator(cmd.Context())
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), o.Evidence(cmd.Context(), req))
		},
	}

	cmd.Flags().StringVar(&req.ImageURL, "image", "", "evidence image URL")
	cmd.Flags().StringArrayVarP(&req.Questions, "question", "q", nil, "question to answer (repeatable)")
	cmd.Flags().StringVar(&req.Instructions, "instructions", "", "replace the default validator preamble")
	cmd.Flags().BoolVar(&req.UseFallback, "fallback", false, "fall back to SambaNova when Gemini fails")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func thematicCmd() *cobra.Command {
	var req orchestrator.ThematicRequest
	var file string

	cmd := &cobra.Command{
		Use:   "thematic [challenge...]",
		Short: "Classify challenge statements into themes and flag PII",
		Long: `Classifies each challenge statement into one of the education barrier
	themes. Statements come from the arguments, from --file (one per line or
	separated by '|'), or from stdin when neither is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readChallenges(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			req.Challenges = text

			o, err := newOrchestrator(cmd.Context())
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), o.Thematic(cmd.Context(), req))
		},
	}

	cmd.Flags().StringVarP(&req.ModelChoice, "model", "m", "Gemini-2.5-Flash", "model choice, e.g. Gemini-2.5-Flash, ChatGPT-4o-Mini, Claude-3-Sonnet")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read challenge statements from a file")

	return cmd
}

func storyCmd() *cobra.Command {
	var req orchestrator.StoryRequest
	var textFile string

	cmd := &cobra.Command{
		Use:   "story",
		Short: "Rate a story of change on impact, issue and action",
		Long: `Extracts the text of the story PDF, optionally adds supplemental text
	and an evidence image, and asks the chosen model for impact, issue and
	action scores. The composite score and tier are computed locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("failed to read supplemental text: %w", err)
				}
				req.SupplementalText = string(data)
			}

			o, err := newOrchestrator(cmd.Context())
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), o.Story(cmd.Context(), req))
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "story title")
	cmd.Flags().StringVar(&req.DocumentURL, "pdf", "", "story PDF URL")
	cmd.Flags().StringVar(&req.SupplementalText, "text", "", "supplemental story text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "read supplemental story text from a file")
	cmd.Flags().StringVar(&req.ImageURL, "image", "", "optional evidence image URL")
	cmd.Flags().StringVarP(&req.ModelChoice, "model", "m", "Gemini-2.5-Flash", "model choice, e.g. Gemini-2.5-Flash, ChatGPT-4o, Claude-4.5-Sonnet")

	return cmd
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show model choice routing rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newOrchestrator(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRIGGERS\tADAPTER\tEVIDENCE\tTHEMATIC\tSTORY")
			for _, route := range o.Router().GetRoutes() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					strings.Join(route.Triggers, ", "),
					route.Adapter,
					route.Models[config.TaskEvidence],
					route.Models[config.TaskThematic],
					route.Models[config.TaskStory])
			}
			return w.Flush()
		},
	}
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List providers, models and aliases",
		Long: `Lists providers and their models with credential status.

	Use --resolve to show aliases and what they resolve to.
	Use --validate to check every model in routing.yaml is known.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()

			if resolveFlag {
				return showAliases(out, cfg.Aliases)
			}
			if validateFlag {
				return validateModels(out, cfg)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, provider := range cfg.Aliases.ListProviders() {
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, strings.Join(cfg.Aliases.GetProviderModels(provider), ", "), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "check all models in routing.yaml are known")

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if addr == "" {
				addr = cfg.ListenAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			o, err := orchestrator.NewFromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			return server.New(o).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from FIELDSCORE_ADDR or :8080)")

	return cmd
}

func showAliases(out io.Writer, aliases *config.ModelAliases) error {
	aliasMap := aliases.ListAliases()
	if len(aliasMap) == 0 {
		fmt.Fprintln(out, "No model aliases configured.")
		return nil
	}

	names := make([]string, 0, len(aliasMap))
	for name := range aliasMap {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")
	for _, alias := range names {
		model := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, aliases.GetProviderForModel(model))
	}
	return w.Flush()
}

func validateModels(out io.Writer, cfg *config.Config) error {
	errs := cfg.Aliases.ValidateRoutingConfig(cfg.RoutingConfig)
	if len(errs) == 0 {
		fmt.Fprintln(out, "All models in routing.yaml are valid.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Found %d validation errors:\n", len(errs))
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %s\n", err)
	}
	return fmt.Errorf("validation failed")
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithRoutingFile(configFile)
	}
	return config.Load()
}

func newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return orchestrator.NewFromConfig(ctx, cfg)
}

// readChallenges joins arguments, or reads the file or stdin.
func readChallenges(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, "\n"), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read challenges: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read challenges from stdin: %w", err)
		}
		return string(data), nil
	}
}

func printEnvelope(out io.Writer, env *envelope.Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(out, string(data))
	if !env.OK() {
		return errAnalysisFailed
	}
	return nil
}
