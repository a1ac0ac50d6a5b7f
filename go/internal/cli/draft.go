package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickudo2004/kairon/go/internal/draftgen"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

var (
	draftInto string
	draftSave bool
)

var errNoAPIKey = errors.New("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")

var draftCmd = &cobra.Command{
	Use:   "draft [file]",
	Short: "Draft a program from free-form notes",
	Long: `Draft a program from free-form notes using Claude.

Notes are read from the file argument, or from stdin when no file is given.
With --into the draft replaces the content of an existing program, keeping its
id and date.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read notes: %w", err)
		}

		client := newDraftClient()
		if client == nil {
			return errNoAPIKey
		}
		return draftRun(cmd.Context(), client, string(raw))
	},
}

func init() {
	draftCmd.Flags().StringVar(&draftInto, "into", "", "Merge the draft into this program id")
	draftCmd.Flags().BoolVar(&draftSave, "save", false, "Save the result to the program store")
	rootCmd.AddCommand(draftCmd)
}

func draftRun(ctx context.Context, g draftgen.Generator, raw string) error {
	ui.Info("Drafting program...")

	results := draftgen.GenerateAsync(ctx, g, raw, time.Now)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var res draftgen.Result
wait:
	for {
		select {
		case res = <-results:
			break wait
		case <-ticker.C:
			ui.VerboseLog("still waiting for the model")
		}
	}
	if res.Err != nil {
		return fmt.Errorf("draft failed: %w", res.Err)
	}

	p := *res.Program
	if draftInto != "" || draftSave {
		app, err := getApp(ctx)
		if err != nil {
			return err
		}
		if draftInto != "" {
			current, err := app.Get(ctx, draftInto)
			if err != nil {
				return err
			}
			p = draftgen.Merge(*current, p)
		}
		if draftSave {
			if err := app.Save(ctx, p); err != nil {
				return err
			}
		}
	}

	printDraft(p)
	if draftSave {
		ui.Success("Saved %s (%s)", p.Title, p.ID)
	}
	return nil
}

func printDraft(p models.Program) {
	renderHeader(ui.Out, p)
	fmt.Fprintln(ui.Out)
	renderSchedule(p, -1)
}
