package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avoronkov/talent-scout/internal/ai"
	"github.com/avoronkov/talent-scout/internal/ai/gemini"
	"github.com/avoronkov/talent-scout/internal/browser"
	"github.com/avoronkov/talent-scout/internal/extract"
	"github.com/avoronkov/talent-scout/internal/journal"
	"github.com/avoronkov/talent-scout/internal/logger"
	"github.com/avoronkov/talent-scout/internal/page"
	"github.com/avoronkov/talent-scout/internal/retry"
	"github.com/avoronkov/talent-scout/internal/rules"
	"github.com/avoronkov/talent-scout/internal/screening"
	"github.com/avoronkov/talent-scout/internal/secrets"
	"github.com/avoronkov/talent-scout/internal/transport"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes      = "Yes"
	PromptNo       = "No"
	PromptStopRun  = "Stop this pass"
	PromptRunAgain = "Run another pass"
	PromptStatus   = "Show status"
	PromptQuit     = "Quit"

	// A pass over a populated list page can take a while with human-like
	// delays between cards.
	passRequestTimeout = 30 * time.Minute
)

var nextPrompt = promptui.Select{
	Label: "Next?",
	Items: []string{PromptRunAgain, PromptStatus, PromptQuit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the talent-scout main command",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "greet matched candidates without asking for confirmation")
	runCmd.Flags().IntP("max", "m", 0, "cap of processed candidates per pass")

	viper.BindPFlag("screening.max-candidates", runCmd.Flags().Lookup("max"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the talent-scout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Page == nil || config.Page.URL == "" {
		logger.Fatal("page url is required under page.url to know where candidates live")
	}

	spec, err := rules.DecodeSpec(config.Rules)
	if err != nil {
		logger.Fatal("decoding the rule spec", zap.Error(err))
	}

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	mode := rules.Mode(config.Mode)
	if autoApprove {
		mode = rules.ModeAutomatic
	}

	store := rules.NewStaticStore(spec, mode, buildCascade(config.Selectors))
	evaluator := rules.NewEvaluator(logger, evaluatorOptions(ctx, config, logger)...)
	extractor := extract.New(store.Cascade(), logger)
	classifier := page.NewClassifier(pageFragments(config.Page))

	session := browser.NewSession(ctx, browserConfig(config.Browser), logger)
	defer session.Close()

	if err := session.Navigate(ctx, config.Page.URL); err != nil {
		logger.Fatal("opening the candidate page", zap.Error(err), zap.String("url", config.Page.URL))
	}

	confirmer := &promptConfirmer{}
	runner := screening.NewRunner(screeningConfig(config.Screening), screening.Deps{
		Driver:     session,
		Actuator:   session,
		Extractor:  extractor,
		Evaluator:  evaluator,
		Store:      store,
		Confirmer:  confirmer,
		Classifier: classifier,
		Journal:    journal.NewZapSink(logger),
		Logger:     logger,
	})
	confirmer.stop = runner.Stop

	bus := newControlBus(runner, logger)

	go func() {
		<-ctx.Done()
		bus.Request(context.Background(), transport.Message{Type: transport.TypeStop})
	}()

	if err := startPass(ctx, bus, logger); err != nil {
		logger.Fatal("screening pass failed", zap.Error(err))
	}

	if autoApprove {
		return
	}

	for {
		_, action, err := nextPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		switch action {
		case PromptRunAgain:
			if err := startPass(ctx, bus, logger); err != nil {
				if errors.Is(err, screening.ErrBusy) {
					logger.Info("previous pass is still cooling down, try again later")
					continue
				}
				logger.Fatal("screening pass failed", zap.Error(err))
			}
		case PromptStatus:
			reply, err := bus.Request(ctx, transport.Message{Type: transport.TypeStatus})
			if err != nil {
				logger.Warn("status request failed", zap.Error(err))
				continue
			}
			logger.Info("screening status", zap.Any("status", reply.Payload))
		case PromptQuit:
			return
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// newControlBus wires the runner behind the message channel so start, stop
// and status all go through one always-answered surface.
func newControlBus(runner *screening.Runner, logger *zap.Logger) *transport.Bus {
	bus := transport.NewBus(passRequestTimeout, logger)

	bus.Handle(transport.TypeStart, func(ctx context.Context, _ transport.Message) (transport.Message, error) {
		summary, err := runner.Run(ctx)
		if err != nil {
			return transport.Message{}, err
		}
		return transport.Message{
			Type: transport.TypeStatus,
			Payload: map[string]any{
				"run_id":    summary.RunID,
				"kind":      string(summary.Kind),
				"attempted": summary.Attempted,
				"processed": summary.Processed,
				"contacted": summary.Contacted,
				"rejected":  summary.Rejected,
				"skipped":   summary.Skipped,
			},
		}, nil
	})

	bus.Handle(transport.TypeStop, func(context.Context, transport.Message) (transport.Message, error) {
		runner.Stop()
		return transport.Message{Type: transport.TypeStop}, nil
	})

	bus.Handle(transport.TypeStatus, func(context.Context, transport.Message) (transport.Message, error) {
		state := runner.State()
		return transport.Message{
			Type: transport.TypeStatus,
			Payload: map[string]any{
				"processing": state.Processing(),
				"processed":  state.ProcessedCount(),
				"seen":       state.SeenCount(),
			},
		}, nil
	})

	return bus
}

func startPass(ctx context.Context, bus *transport.Bus, logger *zap.Logger) error {
	reply, err := bus.Request(ctx, transport.Message{Type: transport.TypeStart})
	if err != nil {
		return err
	}

	logger.Info("pass finished", zap.Any("summary", reply.Payload))
	return nil
}

// promptConfirmer asks the operator before every greet in calibration mode.
type promptConfirmer struct {
	stop func()
}

func (c *promptConfirmer) Confirm(_ context.Context, summary string) (bool, error) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Greet candidate? %s", summary),
		Items: []string{PromptYes, PromptNo, PromptStopRun},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return false, err
	}

	switch action {
	case PromptYes:
		return true, nil
	case PromptStopRun:
		if c.stop != nil {
			c.stop()
		}
		return false, nil
	default:
		return false, nil
	}
}

func evaluatorOptions(ctx context.Context, config *Config, log *zap.Logger) []rules.Option {
	var opts []rules.Option

	if config.Screening != nil && config.Screening.PassThreshold > 0 {
		opts = append(opts, rules.WithPassThreshold(config.Screening.PassThreshold))
	}

	if config.AI == nil || !config.AI.Enabled {
		return opts
	}

	scorer, err := newStageScorer(ctx, config.AI, log)
	if err != nil {
		log.Warn("skipping remote stage scoring", zap.Error(err))
		return opts
	}

	policy := retry.Default
	if config.AI.Gemini != nil && config.AI.Gemini.MaxRetries > 0 {
		policy.MaxAttempts = config.AI.Gemini.MaxRetries
	}

	return append(opts, rules.WithScorer(scorer), rules.WithRetryPolicy(policy))
}

func newStageScorer(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.StageScorer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai scoring is enabled")
	}

	keyFile := strings.TrimSpace(cfg.Gemini.APIKeyFile)
	if keyFile == "" {
		keyFile = strings.TrimSpace(viper.GetString("ai.gemini.api-key-file"))
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: keyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	scorerLog := logger.WithFields(log, logger.ProviderFields("gemini", generator.Model())...)

	return gemini.NewScorer(generator, scorerLog, cfg.Gemini.MaxLogLength), nil
}

func buildCascade(raw map[string][]string) extract.Cascade {
	if len(raw) == 0 {
		return nil
	}

	cascade := make(extract.Cascade, len(raw))
	for field, expressions := range raw {
		cascade[extract.Field(field)] = expressions
	}

	return cascade
}

func pageFragments(cfg *PageConfig) (list, detail []string) {
	if cfg == nil {
		return nil, nil
	}
	return cfg.ListFragments, cfg.DetailFragments
}

func browserConfig(cfg *BrowserConfig) browser.Config {
	if cfg == nil {
		return browser.Config{}
	}

	return browser.Config{
		Headless:        cfg.Headless,
		UserAgent:       cfg.UserAgent,
		CardSelector:    cfg.CardSelector,
		DetailContainer: cfg.DetailContainer,
		GreetSelectors:  cfg.GreetSelectors,
		ModalSelectors:  cfg.ModalSelectors,
		DetailTimeout:   cfg.DetailTimeout,
	}
}

func screeningConfig(cfg *ScreeningConfig) screening.Config {
	if cfg == nil {
		return screening.Config{}
	}

	return screening.Config{
		ConfidenceMargin: cfg.ConfidenceMargin,
		MaxCandidates:    cfg.MaxCandidates,
		ScrollEvery:      cfg.ScrollEvery,
		Cooldown:         cfg.Cooldown,
	}
}
