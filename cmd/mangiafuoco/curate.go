package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"

	"github.com/go-go-golems/mangiafuoco/pkg/engine"
	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/intent"
	"github.com/go-go-golems/mangiafuoco/pkg/operations"
	"github.com/go-go-golems/mangiafuoco/pkg/orchestrator"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
	"github.com/go-go-golems/mangiafuoco/pkg/session"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

const resolverSystemPrompt = `You resolve playlist curation requests into structured requirements.

Understand what the user wants, using the lookup operations to check devices, feed servers and addresses when needed. Then finish with exactly one terminal call:
- finalize_requirements for a build request
- confirm_send to send an existing playlist file to a device
- confirm_publish to publish an existing playlist file

Ask a clarifying question only when the request is genuinely ambiguous.`

const eventTopic = "run-events"

func curateCmd() *cobra.Command {
	var nonInteractive bool
	var showEvents bool
	cmd := &cobra.Command{
		Use:   "curate [request...]",
		Short: "Resolve a playlist request and run it to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			request := strings.Join(args, " ")
			ui := &input.UI{Writer: os.Stdout, Reader: os.Stdin}
			if request == "" {
				if nonInteractive {
					return errors.New("a request is required in non-interactive mode")
				}
				request, err = ui.Ask("What playlist should I curate?", &input.Options{Required: true, Loop: true})
				if err != nil {
					return err
				}
			}
			return runCurate(cmd.Context(), cfg, request, ui, nonInteractive, showEvents)
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "fail instead of prompting for clarification")
	cmd.Flags().BoolVar(&showEvents, "events", false, "print run progress events")
	return cmd
}

func runCurate(ctx context.Context, cfg *appConfig, request string, ui *input.UI, nonInteractive, showEvents bool) error {
	opsConfig, err := cfg.operationsConfig()
	if err != nil {
		return err
	}
	svc := operations.New(opsConfig, registry.New(),
		operations.WithFeedClient(&feedClient{servers: cfg.FeedServers}),
		operations.WithDeviceClient(&deviceClient{devices: cfg.Devices}),
		operations.WithPublisher(&feedPublisher{}),
	)

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	ctx, stop := attachEventSinks(ctx, showEvents)
	defer stop()

	resolution, err := resolveIntent(ctx, cfg, eng, svc, request, ui, nonInteractive)
	if err != nil {
		return err
	}

	switch resolution.Kind {
	case intent.KindSend:
		return runSend(ctx, svc, resolution)
	case intent.KindPublish:
		result, err := svc.Publish(ctx, resolution.FilePath, resolution.FeedServerName)
		if err != nil {
			return err
		}
		fmt.Printf("published playlist %s\n", result.PlaylistID)
		return nil
	}

	runCatalog := tools.NewCatalog()
	operations.RegisterOrchestratorOps(runCatalog, svc)
	o := orchestrator.New(eng, svc, runCatalog, resolution.Requirements, resolution.Settings,
		orchestrator.WithInteractive(!nonInteractive))
	runSess := session.New(orchestrator.SeedTurn(resolution.Requirements, resolution.Settings))

	result, err := o.Run(ctx, runSess)
	for err == nil && result.Status == orchestrator.StatusNeedsConfirmation {
		reply, askErr := ui.Ask(result.Question, &input.Options{Default: "yes", Loop: true})
		if askErr != nil {
			return errors.Wrap(askErr, "confirmation declined")
		}
		result, err = o.Resume(ctx, runSess, reply)
	}
	if err != nil {
		return err
	}
	printRunSummary(result)
	return nil
}

func resolveIntent(ctx context.Context, cfg *appConfig, eng engine.Engine, svc *operations.Service, request string, ui *input.UI, nonInteractive bool) (*intent.Resolution, error) {
	lookupCatalog := tools.NewCatalog()
	operations.RegisterLookupOps(lookupCatalog, svc)
	intent.RegisterTerminalOps(lookupCatalog)

	resolverOpts := []intent.Option{intent.WithDefaults(cfg.Defaults)}
	if !nonInteractive {
		resolverOpts = append(resolverOpts, intent.WithAsker(&promptAsker{ui: ui}))
	}
	resolver := intent.NewResolver(eng, lookupCatalog, resolverOpts...)

	seed := turns.NewSeedTurn(resolverSystemPrompt, request)
	resolution, err := resolver.Resolve(ctx, session.New(seed))
	if err != nil {
		return nil, errors.Wrap(err, "resolve request")
	}
	return resolution, nil
}

func runSend(ctx context.Context, svc *operations.Service, resolution *intent.Resolution) error {
	artifact, err := playlist.ReadFile(resolution.FilePath)
	if err != nil {
		return err
	}
	if err := svc.Registry().Put(registry.KindArtifact, artifact.ID, artifact); err != nil {
		return err
	}
	result, err := svc.SendToDevice(ctx, artifact.ID, resolution.Settings.DeviceName)
	if err != nil {
		return err
	}
	fmt.Printf("sent %s to %s\n", resolution.FilePath, result.DeviceName)
	return nil
}

func buildEngine(cfg *appConfig) (engine.Engine, error) {
	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("no OpenAI API key configured (set openai_api_key or OPENAI_API_KEY)")
	}
	opts := []engine.Option{}
	if cfg.Model.Name != "" {
		opts = append(opts, engine.WithModel(cfg.Model.Name))
	}
	if cfg.Model.Temperature > 0 {
		opts = append(opts, engine.WithTemperature(cfg.Model.Temperature))
	}
	if cfg.Model.MaxTokens > 0 {
		opts = append(opts, engine.WithMaxTokens(cfg.Model.MaxTokens))
	}
	return engine.NewOpenAIEngine(apiKey, opts...), nil
}

// attachEventSinks wires run events through a watermill channel. With
// showEvents the subscriber prints each event; otherwise events only feed the
// debug log.
func attachEventSinks(ctx context.Context, showEvents bool) (context.Context, func()) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	manager := events.NewPublisherManager()
	manager.SubscribePublisher(eventTopic, pubSub)

	subCtx, cancel := context.WithCancel(ctx)
	messages, err := pubSub.Subscribe(subCtx, eventTopic)
	if err != nil {
		cancel()
		log.Warn().Err(err).Msg("event subscription failed, progress events disabled")
		return ctx, func() {}
	}
	go func() {
		for msg := range messages {
			if showEvents {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", msg.Metadata.Get("event_type"), string(msg.Payload))
			} else {
				log.Debug().Str("event_type", msg.Metadata.Get("event_type")).Msg("run event")
			}
			msg.Ack()
		}
	}()
	return events.WithEventSinks(ctx, manager), func() {
		cancel()
		_ = pubSub.Close()
	}
}

type promptAsker struct {
	ui *input.UI
}

func (a *promptAsker) Ask(ctx context.Context, question string) (string, error) {
	return a.ui.Ask(question, &input.Options{Required: true, Loop: true})
}

func printRunSummary(result *orchestrator.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"status", string(result.Status)},
		{"artifact", result.ArtifactID},
		{"items", result.ItemCount},
		{"file", result.ArtifactPath},
		{"turns", result.Turns},
	})
	if result.SentToDevice != "" {
		t.AppendRow(table.Row{"sent to", result.SentToDevice})
	}
	if result.PublishedID != "" {
		t.AppendRow(table.Row{"published as", result.PublishedID})
	}
	if result.PublishError != "" {
		t.AppendRow(table.Row{"publish error", result.PublishError})
	}
	t.Render()

	if result.PublishError != "" {
		fmt.Println("note: the playlist was built and delivered, but publishing failed; re-run publish once the feed server is reachable")
	}
}
