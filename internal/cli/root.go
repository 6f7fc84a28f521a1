package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/citegame/internal/api"
	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/model"
)

const version = "citegame v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citegame",
	Short: "Citegame - terminal client for the citation hallucination game",
	Long: `Citegame plays the citation hallucination game from the terminal.

One team alters citations inside a legal brief, another team tries to
spot the alterations, and the scoreboard reveals who fooled whom.

Citegame follows the server's phase, applies swaps and verdicts
optimistically and renders the end-of-game report.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(os.Stderr, viper.GetBool("output.verbose"))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citegame/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.String("server", "", "game server base URL")
	flags.String("token", "", "session token")
	flags.String("game", "", "game id")

	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("server.base_url", flags.Lookup("server"))
	_ = viper.BindPFlag("server.session_token", flags.Lookup("token"))
	_ = viper.BindPFlag("server.game_id", flags.Lookup("game"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := registerDefaults(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".citegame"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CITEGAME_*
	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults seeds v with every key of the default config so that
// environment variables can override keys absent from the config file
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CITEGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys left out of the defaults by omitempty
	_ = v.BindEnv("server.session_token")
	_ = v.BindEnv("server.game_id")
	_ = v.BindEnv("server.http_proxy", "CITEGAME_SERVER_HTTP_PROXY", "HTTP_PROXY")
	_ = v.BindEnv("server.https_proxy", "CITEGAME_SERVER_HTTPS_PROXY", "HTTPS_PROXY")
	_ = v.BindEnv("llm.api_key", "CITEGAME_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "CITEGAME_LLM_BASE_URL", "OLLAMA_BASE_URL")
}

// loadConfig resolves the full configuration: flags, env, file, defaults
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	return cfg, nil
}

// newClient builds a server client from the resolved configuration
func newClient() (*api.Client, *model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	client, err := api.NewClientFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// requireSession fails early when a command needs a joined player
func requireSession(cfg *model.Config) error {
	if cfg.Server.SessionToken == "" {
		return fmt.Errorf("no session token: run 'citegame join' and export CITEGAME_SERVER_SESSION_TOKEN")
	}
	return nil
}
