package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/ppiankov/exposure/internal/util"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "EXPOSURE"

var envReplacer = strings.NewReplacer(".", "_")

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "exposure",
	Short: "Exposure - find where your personal information is published",
	Long: `Exposure searches public engines and platforms for a person's name, email,
phone number and address, extracts what it finds, and reports a risk
percentage with concrete remediation steps.

Only scan information that belongs to you or that you are authorized to check.
Exposure honors robots.txt and paces requests per domain.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log.level")
		if verbose {
			level = "debug"
		}
		return util.InitLogger(level, viper.GetString("log.format"))
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
		fmt.Fprintln(cmd.OutOrStdout(), "exposure "+Version)
	},
}

// Version is overridden at build time with -ldflags
var Version = "v0.1.0"

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.exposure/config.yaml, then $XDG_CONFIG_HOME/exposure/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(viper.GetViper()); err != nil {
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
		viper.AddConfigPath(filepath.Join(home, ".exposure"))
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "exposure"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// EXPOSURE_HTTP_TIMEOUT overrides http.timeout
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of the default config so that
// environment variables can override keys absent from the config file
func setDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return eris.Wrap(err, "marshal defaults")
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return eris.Wrap(err, "unmarshal defaults")
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("llm.api_key", "")
	return nil
}

// loadConfig merges defaults, the config file and the environment
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "decode configuration")
	}
	return cfg, nil
}
