package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/router"
	"github.com/patrickudo2004/kairon/go/internal/sharelink"
)

var shareMode string

var errInvalidShareLink = errors.New("invalid share link")

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Create and read share links",
}

var shareLinkCmd = &cobra.Command{
	Use:   "link <id>",
	Short: "Print a share link for a stored program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := app.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return shareLinkRun(*p, router.ParseMode(shareMode))
	},
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <token|url>",
	Short: "Print the program carried by a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shareDecodeRun(args[0])
	},
}

var shareImportCmd = &cobra.Command{
	Use:   "import <token|url>",
	Short: "Save the program carried by a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shareImportRun(cmd.Context(), args[0])
	},
}

func init() {
	shareLinkCmd.Flags().StringVar(&shareMode, "mode", string(router.ModeViewer), "Link mode: viewer, coeditor or editor")

	shareCmd.AddCommand(shareLinkCmd)
	shareCmd.AddCommand(shareDecodeCmd)
	shareCmd.AddCommand(shareImportCmd)
	rootCmd.AddCommand(shareCmd)
}

func shareLinkRun(p models.Program, mode router.Mode) error {
	token, err := sharelink.Encode(p)
	if err != nil {
		return err
	}
	ui.VerboseLog("token is %d characters", len(token))
	_, err = ui.Out.Write([]byte(router.ShareURL(viper.GetString("share.base_url"), mode, p.ID, token) + "\n"))
	return err
}

// tokenFromArg accepts a bare token or any location carrying an import parameter.
func tokenFromArg(arg string) string {
	if !strings.ContainsAny(arg, "/?#") {
		return arg
	}
	route, err := router.Parse(arg)
	if err != nil {
		return ""
	}
	return route.Import
}

func decodeArg(arg string) (*models.Program, error) {
	p := sharelink.Decode(tokenFromArg(arg))
	if p == nil {
		return nil, errInvalidShareLink
	}
	return p, nil
}

func shareDecodeRun(arg string) error {
	p, err := decodeArg(arg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func shareImportRun(ctx context.Context, arg string) error {
	p, err := decodeArg(arg)
	if err != nil {
		return err
	}
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	if err := app.Save(ctx, *p); err != nil {
		return err
	}
	ui.Success("Imported %s (%s), %d slots", p.Title, p.ID, len(p.Slots))
	return nil
}
