package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glizzus/clutch/internal/analysis"
	"github.com/glizzus/clutch/internal/config"
	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/glizzus/clutch/internal/opus"
	"github.com/glizzus/clutch/internal/preferences"
	"github.com/glizzus/clutch/internal/presenters"
	"github.com/glizzus/clutch/internal/repository"
	"github.com/glizzus/clutch/internal/script"
	"github.com/glizzus/clutch/internal/transcode"
	"github.com/glizzus/clutch/internal/tts"
	"github.com/urfave/cli/v2"
)

var stdinReader = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Printf("%s: ", label)
	input, _ := stdinReader.ReadString('\n')
	return strings.TrimSpace(input)
}

// promptStep asks for one wizard answer by option number.
func promptStep(step preferences.Step) (string, error) {
	fmt.Println(step.Title)
	if step.Scale {
		fmt.Println(step.Placeholder)
	}
	for i, o := range step.Options {
		fmt.Printf("  %d) %s\n", i+1, o.Label)
	}
	n, err := strconv.Atoi(prompt("Option"))
	if err != nil || n < 1 || n > len(step.Options) {
		return "", fmt.Errorf("%w: %s", preferences.ErrUnknownValue, step.ID)
	}
	return step.Options[n-1].Value, nil
}

var userFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "user-id",
		Usage:    "Discord ID of the player",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "username",
		Usage: "Display name passed to the analysis",
		Value: "cli",
	},
}

func openStore(ctx context.Context) (preferences.Store, func(), error) {
	cfg, err := config.NewPreferencesConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPreferenceStore(ctx, cfg)
}

// analyze reads an MP3 file and runs the analysis with the player's stored
// preferences, if any.
func analyze(c *cli.Context) (analysis.Result, error) {
	audio, err := os.ReadFile(c.String("file"))
	if err != nil {
		return analysis.Result{}, err
	}

	cfg, err := config.NewAnalysisConfigFromEnv()
	if err != nil {
		return analysis.Result{}, err
	}
	cmd, err := script.Parse(cfg.Command, cfg.Timeout)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("invalid ANALYSIS_COMMAND: %w", err)
	}

	store, closeStore, err := openStore(c.Context)
	if err != nil {
		return analysis.Result{}, err
	}
	defer closeStore()

	var prefs *preferences.Preferences
	if stored, err := store.Get(c.Context, c.String("user-id")); err == nil {
		prefs = &stored
	}

	return analysis.NewAnalyzer(cmd).Analyze(c.Context, analysis.Request{
		UserID:      c.String("user-id"),
		Username:    c.String("username"),
		RecordedAt:  time.Now(),
		Audio:       audio,
		Preferences: prefs,
	})
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	fileFlag := &cli.StringFlag{
		Name:     "file",
		Usage:    "MP3 recording to analyse",
		Required: true,
	}

	app := &cli.App{
		Name:        "clutch-cli",
		Description: "A development CLI tool for testing Clutch without Discord",
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Run the analysis over a recording and print the messages a player would get",
				Flags: append([]cli.Flag{fileFlag}, userFlags...),
				Action: func(c *cli.Context) error {
					result, err := analyze(c)
					if err != nil {
						return cli.Exit("Analysis failed: "+err.Error(), 1)
					}
					for _, msg := range presenters.AnalysisMessages(result) {
						fmt.Println(msg)
						fmt.Println()
					}
					return nil
				},
			},
			{
				Name:  "report",
				Usage: "Analyse a recording and write its PDF report",
				Flags: append([]cli.Flag{
					fileFlag,
					&cli.StringFlag{Name: "out", Usage: "Where to write the PDF", Value: "report.pdf"},
				}, userFlags...),
				Action: func(c *cli.Context) error {
					result, err := analyze(c)
					if err != nil {
						return cli.Exit("Analysis failed: "+err.Error(), 1)
					}
					cfg, err := config.NewAnalysisConfigFromEnv()
					if err != nil {
						return err
					}
					cmd, err := script.Parse(cfg.ReportCommand, cfg.ReportTimeout)
					if err != nil {
						return cli.Exit("Invalid REPORT_COMMAND: "+err.Error(), 1)
					}
					pdf, err := analysis.NewReporter(cmd).Render(c.Context, result, c.String("user-id"), c.String("username"), time.Now())
					if err != nil {
						return cli.Exit("Report failed: "+err.Error(), 1)
					}
					if err := os.WriteFile(c.String("out"), pdf, 0o644); err != nil {
						return err
					}
					log.Printf("Report written to %s", c.String("out"))
					return nil
				},
			},
			{
				Name:  "speak",
				Usage: "Synthesize text with the configured speech provider",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Required: true},
					&cli.StringFlag{Name: "voice", Usage: "Voice ID, defaults to the provider's default"},
					&cli.StringFlag{Name: "speed", Value: string(preferences.SpeedNormal)},
					&cli.StringFlag{Name: "out", Value: "speech.mp3"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.NewTTSConfigFromEnv()
					if err != nil {
						return err
					}
					if !cfg.Enabled() {
						return cli.Exit("No credentials for TTS_PROVIDER "+cfg.Provider, 1)
					}

					var synth tts.Synthesizer
					if cfg.Provider == config.TTSProviderGoogle {
						g, err := tts.NewGoogle(c.Context, cfg.GoogleCredentialsFile, cfg.GoogleLanguage)
						if err != nil {
							return err
						}
						defer g.Close()
						synth = g
					} else {
						synth = tts.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel)
					}

					audio, err := synth.Synthesize(c.Context, c.String("text"), c.String("voice"), preferences.Speed(c.String("speed")))
					if err != nil {
						return cli.Exit("Synthesis failed: "+err.Error(), 1)
					}
					return os.WriteFile(c.String("out"), audio, 0o644)
				},
			},
			{
				Name:  "decode",
				Usage: "Convert a file of length-prefixed Opus frames into MP3",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Required: true},
					&cli.StringFlag{Name: "out", Value: "recording.mp3"},
				},
				Action: func(c *cli.Context) error {
					f, err := os.Open(c.String("in"))
					if err != nil {
						return err
					}
					defer f.Close()

					pcm, skipped, err := opus.DecodeAll(f)
					if err != nil {
						return cli.Exit("Decode failed: "+err.Error(), 1)
					}
					if skipped > 0 {
						log.Printf("Skipped %d undecodable frames", skipped)
					}

					cfg, err := config.NewAnalysisConfigFromEnv()
					if err != nil {
						return err
					}
					mp3, err := transcode.New(cfg.FFmpegPath).ToMP3(c.Context, pcm)
					if err != nil {
						return cli.Exit("Transcode failed: "+err.Error(), 1)
					}
					return os.WriteFile(c.String("out"), mp3, 0o644)
				},
			},
			{
				Name:  "prefs",
				Usage: "Inspect or change stored preferences",
				Subcommands: []*cli.Command{
					{
						Name:  "get",
						Usage: "Print the stored preferences of a player",
						Flags: userFlags[:1],
						Action: func(c *cli.Context) error {
							store, closeStore, err := openStore(c.Context)
							if err != nil {
								return err
							}
							defer closeStore()

							prefs, err := store.Get(c.Context, c.String("user-id"))
							if err != nil {
								return cli.Exit("Failed to load preferences: "+err.Error(), 1)
							}
							out, err := json.MarshalIndent(prefs, "", "  ")
							if err != nil {
								return err
							}
							fmt.Println(string(out))
							return nil
						},
					},
					{
						Name:  "set",
						Usage: "Answer the preference wizard from the terminal",
						Flags: userFlags[:1],
						Action: func(c *cli.Context) error {
							store, closeStore, err := openStore(c.Context)
							if err != nil {
								return err
							}
							defer closeStore()

							steps := preferences.Steps(nil)
							if cfg, err := config.NewTTSConfigFromEnv(); err == nil && cfg.Enabled() {
								steps = preferences.Steps(tts.ProviderVoices(cfg.Provider))
							}
							if cfg, err := config.NewPreferencesConfigFromEnv(); err == nil && cfg.PersonalityTest {
								steps = preferences.WithQuestionnaire(steps)
							}

							var prefs preferences.Preferences
							for _, step := range steps {
								value, err := promptStep(step)
								if err != nil {
									return cli.Exit(err.Error(), 1)
								}
								if err := prefs.Set(step.ID, value); err != nil {
									return err
								}
							}
							if err := prefs.Validate(steps); err != nil {
								return cli.Exit("Invalid preferences: "+err.Error(), 1)
							}
							if err := store.Save(c.Context, c.String("user-id"), prefs); err != nil {
								return cli.Exit("Failed to save preferences: "+err.Error(), 1)
							}
							log.Println("Preferences saved.")
							return nil
						},
					},
				},
			},
			{
				Name:  "purge",
				Usage: "Remove archived recordings older than the retention period",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Value: 30 * 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.NewMinioConfigFromEnv()
					if err != nil {
						return err
					}
					if !cfg.Enabled() {
						return cli.Exit("MINIO_ENDPOINT is not set", 1)
					}
					storage, err := datalayer.NewMinioStorage(cfg)
					if err != nil {
						return err
					}
					cutoff := time.Now().Add(-c.Duration("older-than"))
					removed, err := datalayer.PurgeOlderThan(c.Context, storage, cutoff,
						datalayer.RecordingsPrefix, datalayer.ReportsPrefix, datalayer.CoachPrefix)
					log.Printf("Removed %d objects older than %s", removed, cutoff.Format(time.RFC3339))
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
