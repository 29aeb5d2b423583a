package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bz888/agentchat/internal/api"
	"github.com/bz888/agentchat/internal/chat"
	"github.com/bz888/agentchat/internal/config"
	"github.com/bz888/agentchat/internal/logger"
	"github.com/bz888/agentchat/internal/speech"
	"github.com/bz888/agentchat/internal/ui"
)

var (
	envFlag         string
	apiURLFlag      string
	timeoutFlag     time.Duration
	devFlag         bool
	logPathFlag     string
	sileroModelFlag string
	inputDeviceFlag int
)

var rootCmd = &cobra.Command{
	Use:   "agentchat",
	Short: "Terminal chat client for an AI agent backend",
	Long: `agentchat talks to an AI agent over HTTP. Type a message and press Enter
to send it; the agent's reply appears in the conversation once it arrives.

Settings come from the environment (or a .env file) and can be overridden
with the flags below.`,
	RunE:          runTUI,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFlag, "env", config.EnvDevelopment, "Deployment environment (development or production)")
	flags.StringVar(&apiURLFlag, "api-url", "", "Agent API base URL (defaults to "+config.DevelopmentAPIURL+" in development)")
	flags.DurationVar(&timeoutFlag, "timeout", config.DefaultTimeout, "Upper bound for a single request")
	flags.BoolVar(&devFlag, "dev", false, "Show the debug console and keep recorded voice clips")
	flags.StringVar(&logPathFlag, "log-path", "", "Directory for the log file")
	flags.StringVar(&sileroModelFlag, "silero-model", config.DefaultSileroPath, "Path to the silero VAD model")
	flags.IntVar(&inputDeviceFlag, "input-device", -1, "Microphone device index, -1 for the system default")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the environment and applies only the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("env") {
		o.Env = &envFlag
	}
	if flags.Changed("api-url") {
		o.APIURL = &apiURLFlag
	}
	if flags.Changed("timeout") {
		o.Timeout = &timeoutFlag
	}
	if flags.Changed("dev") {
		o.Dev = &devFlag
	}
	if flags.Changed("log-path") {
		o.LogPath = &logPathFlag
	}
	if flags.Changed("silero-model") {
		o.SileroModelPath = &sileroModelFlag
	}
	if flags.Changed("input-device") {
		o.InputDevice = &inputDeviceFlag
	}

	cfg, err := config.Load(o)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*api.Client, error) {
	return api.NewClient(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout})
}

func newDictator(cfg *config.Config) ui.Dictator {
	keepDir := ""
	if cfg.Dev {
		keepDir = cfg.LogPath
	}
	d, err := speech.NewDictator(speech.Config{
		APIKey:    cfg.SpeechAPIKey,
		ModelPath: cfg.SileroModelPath,
		Device:    cfg.InputDevice,
		KeepDir:   keepDir,
	})
	if err != nil {
		return nil
	}
	return d
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	view := ui.New(ui.Options{
		Store:   chat.NewStore(client),
		Backend: client,
		Voice:   newDictator(cfg),
		Dev:     cfg.Dev,
	})

	if err := logger.Init(logger.Options{
		Dev:     cfg.Dev,
		Dir:     cfg.LogPath,
		Console: view.DebugConsole(),
	}); err != nil {
		return err
	}
	defer logger.Close()

	log := logger.New("main")
	log.Infof("starting in %s mode against %s", cfg.Env, client.BaseURL())
	if !cfg.VoiceEnabled() {
		log.Warn("API_KEY is not set, voice recognition is disabled")
	}

	if err := view.Run(); err != nil {
		return fmt.Errorf("error running app: %w", err)
	}
	log.Info("Shutting down gracefully.")
	return nil
}
