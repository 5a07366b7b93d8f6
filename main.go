package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/marian-merour/prodmeeting-followup-email/assistant"
	"github.com/marian-merour/prodmeeting-followup-email/config"
	"github.com/marian-merour/prodmeeting-followup-email/drive"
	"github.com/marian-merour/prodmeeting-followup-email/gmail"
	"github.com/marian-merour/prodmeeting-followup-email/llm"
	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
	"github.com/marian-merour/prodmeeting-followup-email/sheets"
)

func main() {
	cmd := &cli.Command{
		Name:  "followup-assistant",
		Usage: "draft follow-up emails from meeting-notes messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yaml",
				Usage: "path to the YAML config file",
			},
			&cli.BoolFlag{
				Name:  "setup-auth",
				Usage: "run the OAuth consent flow and store the token",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "classify matching emails without drafts or labels",
			},
			&cli.BoolFlag{
				Name:  "daemon",
				Usage: "run continuously at the configured interval",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if cmd.Bool("setup-auth") {
		if err := gmail.SetupAuth(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile); err != nil {
			return err
		}
		fmt.Println("Setup complete. You can now run the assistant.")
		return nil
	}

	a, err := buildAssistant(ctx, cfg, logger)
	if err != nil {
		return err
	}

	dryRun := cmd.Bool("dry-run")
	pass := func(ctx context.Context) error {
		results, err := a.CheckAndProcess(ctx, dryRun)
		if err != nil {
			return err
		}
		fmt.Print(assistant.Summary(results))
		return nil
	}

	if cmd.Bool("daemon") {
		return assistant.RunDaemon(ctx, cfg.App.PollInterval(), logger, pass)
	}
	return pass(ctx)
}

func buildAssistant(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*assistant.Assistant, error) {
	httpClient, err := gmail.OAuthHTTPClient(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
	if err != nil {
		return nil, err
	}

	mailClient, err := gmail.NewClient(ctx, httpClient, logger.With(slog.String("component", "gmail")))
	if err != nil {
		return nil, err
	}
	if err := mailClient.EnsureLabel(ctx, cfg.Gmail.ProcessedLabel); err != nil {
		return nil, err
	}

	browser, err := drive.NewBrowser(ctx, httpClient)
	if err != nil {
		return nil, err
	}

	rule, err := pipeline.NewSubjectRule(cfg.Subject.RequiredToken, cfg.Subject.ExcludeTerms, cfg.Subject.CapturePattern)
	if err != nil {
		return nil, err
	}

	folders, err := pipeline.NewFolderResolver(browser, cfg.Drive.BasePath, cfg.Drive.OutlinePattern,
		logger.With(slog.String("component", "folders")))
	if err != nil {
		return nil, err
	}

	completer := llm.NewClient(cfg.Extraction.APIKey, cfg.Extraction.Model)
	extractor := pipeline.NewExtractor(completer, cfg.Extraction.RetryCount, cfg.Extraction.RetryDelay(),
		logger.With(slog.String("component", "extractor")))

	caps := pipeline.Capabilities{LegalName: mailClient, Address: mailClient}
	if cfg.Sheets.Enabled() {
		timeline, err := sheets.NewClient(ctx, httpClient, cfg.Sheets.SpreadsheetID,
			cfg.Sheets.GridID, cfg.Sheets.NameRow, cfg.Sheets.StartRow, cfg.Sheets.EndRow)
		if err != nil {
			return nil, err
		}
		caps.Timeline = timeline
	}

	pipe := pipeline.New(rule, extractor, caps, folders,
		logger.With(slog.String("component", "pipeline")))

	return assistant.New(cfg, rule, mailClient, pipe,
		logger.With(slog.String("component", "assistant"))), nil
}
