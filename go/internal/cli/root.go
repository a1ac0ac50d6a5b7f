// Package cli implements the kairon console: a presenter and viewer for live programs plus
// program management commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/patrickudo2004/kairon/go/internal/dbconfig"
	"github.com/patrickudo2004/kairon/go/internal/draftgen"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *UI

	verbose bool

	buildVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "kairon",
	Short: "Run and share live event programs",
	Long: `kairon runs timed event programs with a live countdown that every
presenter, co-editor and viewer of a program sees in lock-step.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(ui.Out, buildVersion)
	},
}

// Execute is the main entry point called from main.go.
func Execute(version string) {
	buildVersion = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kairon/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "Program store: postgres or memory")
	rootCmd.PersistentFlags().String("transport", "", "Sync transport: ws, nats or memory")
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("transport", rootCmd.PersistentFlags().Lookup("transport"))

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "kairon"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KAIRON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("store", "postgres")
	viper.SetDefault("database_url", dbconfig.NewConfigFromEnv().DSN())
	viper.SetDefault("transport", "ws")
	viper.SetDefault("gateway_url", "ws://localhost:8081")
	viper.SetDefault("nats_url", nats.DefaultURL)
	viper.SetDefault("share.base_url", "http://localhost:5173")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", draftgen.DefaultModel)
	viper.SetDefault("log_level", "warn")
}

func initDeps() {
	ui = NewUI()
	ui.Verbose = verbose

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}
