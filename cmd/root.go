package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "talent-scout"
)

type Config struct {
	Page      *PageConfig         `mapstructure:"page"`
	Rules     map[string]any      `mapstructure:"rules"`
	Mode      string              `mapstructure:"mode"`
	Selectors map[string][]string `mapstructure:"selectors"`
	Screening *ScreeningConfig    `mapstructure:"screening"`
	Browser   *BrowserConfig      `mapstructure:"browser"`
	AI        *AIConfig           `mapstructure:"ai"`
}

type PageConfig struct {
	URL             string   `mapstructure:"url"`
	ListFragments   []string `mapstructure:"list-fragments"`
	DetailFragments []string `mapstructure:"detail-fragments"`
}

type ScreeningConfig struct {
	ConfidenceMargin float64       `mapstructure:"confidence-margin"`
	PassThreshold    float64       `mapstructure:"pass-threshold"`
	MaxCandidates    int           `mapstructure:"max-candidates"`
	ScrollEvery      int           `mapstructure:"scroll-every"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	UserAgent       string        `mapstructure:"user-agent"`
	CardSelector    string        `mapstructure:"card-selector"`
	DetailContainer string        `mapstructure:"detail-container"`
	GreetSelectors  []string      `mapstructure:"greet-selectors"`
	ModalSelectors  []string      `mapstructure:"modal-selectors"`
	DetailTimeout   time.Duration `mapstructure:"detail-timeout"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talent-scout is a cli for screening recruiting-page candidates against a rule spec and greeting the matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talent-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
