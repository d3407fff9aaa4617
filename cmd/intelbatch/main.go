// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/intelbatch"
	"github.com/poiesic/intelbatch/client"
	"github.com/poiesic/intelbatch/core"
)

func main() {
	app := &cli.App{
		Name:  "intelbatch",
		Usage: "Bulk threat intelligence submission",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "submit",
				Usage:  "Submit entities from a JSON file to the platform",
				Action: submitCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Aliases:  []string{"a"},
						Usage:    "Platform API base URL",
						EnvVars:  []string{"INTELBATCH_ADDRESS"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "owner",
						Aliases:  []string{"o"},
						Usage:    "Owner the entities are written to",
						EnvVars:  []string{"INTELBATCH_OWNER"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Path to the entity JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "store",
						Usage: "Directory for the disk staging tier (memory-only if unset)",
					},
					&cli.StringFlag{
						Name:  "dump-dir",
						Usage: "Directory for gzip snapshots of submitted chunks and errors",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum entities per submitted chunk",
						Value: 1000,
					},
					&cli.BoolFlag{
						Name:  "continue-on-error",
						Usage: "Keep submitting remaining chunks when a chunk fails",
					},
					&cli.DurationFlag{
						Name:  "poll-timeout",
						Usage: "Ceiling on the time spent polling one job",
						Value: time.Hour,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Parse and stage the input without submitting",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func submitCommand(c *cli.Context) error {
	ctx := context.Background()

	data, err := os.ReadFile(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	var input entityFile
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}

	settings := client.DefaultSettings(c.String("owner"))
	settings.HaltOnError = !c.Bool("continue-on-error")

	opts := []intelbatch.Option{
		intelbatch.WithSettings(settings),
		intelbatch.WithChunkSize(c.Int("chunk-size")),
		intelbatch.WithClientConfig(func(config *client.Config) {
			config.PollTimeout = c.Duration("poll-timeout")
		}),
	}
	if path := c.String("store"); path != "" {
		opts = append(opts, intelbatch.WithStorePath(path))
	}
	if dir := c.String("dump-dir"); dir != "" {
		opts = append(opts, intelbatch.WithDumpDir(dir))
	}
	if !c.Bool("dry-run") {
		opts = append(opts, intelbatch.WithProgress(os.Stderr))
	}

	b, err := intelbatch.New(c.String("address"), c.String("owner"), opts...)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	defer b.Close()

	if err := stage(b, &input); err != nil {
		return fmt.Errorf("failed to stage entities: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Staged: %d groups, %d indicators, %d associations\n",
		len(input.Groups), len(input.Indicators), len(input.Associations))

	if c.Bool("dry-run") {
		return nil
	}

	if err := b.Submit(ctx); err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}
	return nil
}

// entityFile is the input document shape: the same top-level arrays
// the platform accepts, in a builder-friendly form.
type entityFile struct {
	Groups       []groupInput       `json:"group"`
	Indicators   []indicatorInput   `json:"indicator"`
	Associations []associationInput `json:"association"`
}

type groupInput struct {
	Type           string           `json:"type"`
	Name           string           `json:"name"`
	Xid            string           `json:"xid"`
	Tags           []string         `json:"tag"`
	Attributes     []attributeInput `json:"attribute"`
	AssociatedXids []string         `json:"associatedGroupXid"`
	FileName       string           `json:"fileName"`
	FilePath       string           `json:"filePath"`
	Fields         map[string]any   `json:"fields"`
}

type indicatorInput struct {
	Type       string           `json:"type"`
	Summary    string           `json:"summary"`
	Values     []string         `json:"values"`
	Rating     *float64         `json:"rating"`
	Confidence *int             `json:"confidence"`
	Xid        string           `json:"xid"`
	Tags       []string         `json:"tag"`
	Attributes []attributeInput `json:"attribute"`
	Groups     []string         `json:"associatedGroups"`
}

type attributeInput struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Displayed bool   `json:"displayed"`
	Source    string `json:"source"`
}

type associationInput struct {
	Type string `json:"associationType"`
	Ref1 string `json:"ref1"`
	Ref2 string `json:"ref2"`
}

func stage(b *intelbatch.Batch, input *entityFile) error {
	for _, gi := range input.Groups {
		opts := []core.GroupOption{}
		if gi.Xid != "" {
			opts = append(opts, core.WithXid(gi.Xid))
		}
		for key, value := range gi.Fields {
			opts = append(opts, core.WithField(key, value))
		}
		if gi.FileName != "" {
			opts = append(opts, core.WithField("fileName", gi.FileName))
		}
		g, err := b.Group(gi.Type, gi.Name, opts...)
		if err != nil {
			return err
		}
		if gi.FilePath != "" {
			path := gi.FilePath
			g.SetFileContent(core.Deferred(func(string) []byte {
				content, err := os.ReadFile(path)
				if err != nil {
					slog.Warn("failed to read file content", "path", path, "err", err)
					return nil
				}
				return content
			}))
		}
		for _, tag := range gi.Tags {
			g.Tag(tag)
		}
		for _, attr := range gi.Attributes {
			g.AttributeWithOptions(attr.Type, attr.Value, core.UniqueAppend, attr.Displayed, attr.Source, nil)
		}
		for _, xid := range gi.AssociatedXids {
			g.AssociateGroup(xid)
		}
	}

	for _, ii := range input.Indicators {
		opts := []core.IndicatorOption{}
		if ii.Xid != "" {
			opts = append(opts, core.WithIndicatorXid(ii.Xid))
		}
		if ii.Rating != nil {
			opts = append(opts, core.WithRating(*ii.Rating))
		}
		if ii.Confidence != nil {
			opts = append(opts, core.WithConfidence(*ii.Confidence))
		}

		var in *core.Indicator
		var err error
		if len(ii.Values) > 0 {
			in, err = b.IndicatorValues(ii.Type, ii.Values, opts...)
		} else {
			in, err = b.Indicator(ii.Type, ii.Summary, opts...)
		}
		if err != nil {
			return err
		}
		for _, tag := range ii.Tags {
			in.Tag(tag)
		}
		for _, attr := range ii.Attributes {
			in.AttributeWithOptions(attr.Type, attr.Value, core.UniqueAppend, attr.Displayed, attr.Source, nil)
		}
		for _, xid := range ii.Groups {
			in.AssociateGroup(xid)
		}
	}

	for _, ai := range input.Associations {
		b.Associate(ai.Type,
			core.AssociationTarget{Ref: ai.Ref1},
			core.AssociationTarget{Ref: ai.Ref2})
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
