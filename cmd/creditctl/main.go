package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"credit-scoring/internal/cfg"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	settingsKey = "settings"

	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"

	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error (default: LOG_LEVEL or info)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [text, json, yaml]",
		Value: formatText,
	}
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("creditctl failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:            "creditctl",
		Version:         version,
		Usage:           "Train, manage and query the credit scoring models",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			logLevelFlag,
			formatFlag,
		},
		Commands: []*cli.Command{
			generateCmd,
			trainCmd,
			predictCmd,
			sampleCmd,
			statusCmd,
			modelsCmd,
		},
		Before: func(c *cli.Context) error {
			settings, err := cfg.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			level := c.String(logLevelFlag.Name)
			if level == "" {
				level = settings.LogLevel
			}
			lvl, err := zerolog.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("invalid log level %q", level)
			}
			zerolog.SetGlobalLevel(lvl)

			switch c.String(formatFlag.Name) {
			case formatText, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unsupported format %q", c.String(formatFlag.Name))
			}

			c.App.Metadata[settingsKey] = &settings
			return nil
		},
	}
}

func getSettings(c *cli.Context) *cfg.Settings {
	return c.App.Metadata[settingsKey].(*cfg.Settings)
}

// printStructured writes v as JSON or YAML. It reports false for the text
// format so the caller can render its own layout.
func printStructured(c *cli.Context, w io.Writer, v any) (bool, error) {
	switch c.String(formatFlag.Name) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	}
	return false, nil
}
