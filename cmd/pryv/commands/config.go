package commands

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration file.
type Config struct {
	ServiceInfoURL string                `json:"service_info_url,omitempty" yaml:"service_info_url,omitempty"`
	Output         string                `json:"output,omitempty"           yaml:"output,omitempty"`
	Cache          *CacheConfig          `json:"cache,omitempty"            yaml:"cache,omitempty"`
	APIs           map[string]*APIConfig `json:"apis,omitempty"             yaml:"apis,omitempty"`
	CurrentAPI     string                `json:"current_api,omitempty"      yaml:"current_api,omitempty"`
}

// CacheConfig is the persisted form of CacheSettings.
type CacheConfig struct {
	Type    string `json:"type,omitempty"     yaml:"type,omitempty"`
	NATSURL string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	Bucket  string `json:"bucket,omitempty"   yaml:"bucket,omitempty"`
}

// APIConfig is one saved API endpoint, keyed in Config.APIs by apiKey.
type APIConfig struct {
	Endpoint       string     `json:"endpoint"                   yaml:"endpoint"`
	Username       string     `json:"username,omitempty"         yaml:"username,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	ServiceInfoURL string     `json:"service_info_url,omitempty" yaml:"service_info_url,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"       yaml:"last_login,omitempty"`
}

// configKeys are the keys accepted by 'config set' and 'config unset'.
var configKeys = map[string]func(config *Config, value string) error{
	"service_info_url": func(config *Config, value string) error {
		config.ServiceInfoURL = value

		return nil
	},
	"output": func(config *Config, value string) error {
		config.Output = value

		return nil
	},
	"current_api": func(config *Config, value string) error {
		if _, exists := config.APIs[value]; value != "" && !exists {
			return fmt.Errorf("'%s': %w", value, constants.ErrAPIConfigNotFound)
		}

		config.CurrentAPI = value

		return nil
	},
	"cache.type": func(config *Config, value string) error {
		cacheConfig(config).Type = value

		return nil
	},
	"cache.nats_url": func(config *Config, value string) error {
		cacheConfig(config).NATSURL = value

		return nil
	},
	"cache.bucket": func(config *Config, value string) error {
		cacheConfig(config).Bucket = value

		return nil
	},
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage Pryv CLI configuration including saved API endpoints and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the configuration file contents with tokens masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := currentSettings()

			return runConfigShow(cmd.OutOrStdout(), settings.ConfigFile, settings.Output)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Keys: " + strings.Join(sortedConfigKeys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), currentSettings().ConfigFile, args[0], args[1])
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value. Keys: " + strings.Join(sortedConfigKeys(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), currentSettings().ConfigFile, args[0], "")
		},
	}
}

func newConfigClearCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all configuration",
		Long:  "Remove every setting and saved API endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "This removes all saved tokens. Re-run with --force to confirm.")

				return nil
			}

			err := saveConfigTo(currentSettings().ConfigFile, &Config{})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration cleared")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "clear without confirmation")

	return cmd
}

func runConfigShow(out io.Writer, path, format string) error {
	config, err := loadConfigFrom(path)
	if err != nil {
		return err
	}

	masked := maskedConfig(config)

	return writeOutput(out, format, masked, func(table *tablewriter.Table) {
		table.Header("Setting", "Value")

		_ = table.Append(label("service_info_url"), orNotAvailable(masked.ServiceInfoURL))
		_ = table.Append(label("output"), orNotAvailable(masked.Output))
		_ = table.Append(label("current_api"), orNotAvailable(masked.CurrentAPI))

		if masked.Cache != nil {
			_ = table.Append("Cache", fmt.Sprintf("%s %s %s", masked.Cache.Type, masked.Cache.NATSURL, masked.Cache.Bucket))
		}

		for _, key := range sortedAPIKeys(masked) {
			apiConfig := masked.APIs[key]
			_ = table.Append("API "+key, fmt.Sprintf("%s (user %s, token %s)",
				apiConfig.Endpoint, orNotAvailable(apiConfig.Username), apiConfig.Token))
		}
	})
}

func runConfigSet(out io.Writer, path, key, value string) error {
	apply, known := configKeys[key]
	if !known {
		return fmt.Errorf("%w: %s (valid keys: %s)", constants.ErrUnknownConfigKey, key, strings.Join(sortedConfigKeys(), ", "))
	}

	config, err := loadConfigFrom(path)
	if err != nil {
		return err
	}

	err = apply(config, value)
	if err != nil {
		return err
	}

	err = saveConfigTo(path, config)
	if err != nil {
		return err
	}

	if value == "" {
		_, _ = fmt.Fprintf(out, "Unset %s\n", key)
	} else {
		_, _ = fmt.Fprintf(out, "Set %s = %s\n", key, value)
	}

	return nil
}

// configFilePath is the file viper read, the --config flag, or ~/.pryv/config.yml.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}

	if flag := viper.GetString("config"); flag != "" {
		return flag
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}

	return filepath.Join(home, ".pryv", "config.yml")
}

// loadConfigFrom reads the config file. A missing file is an empty config.
func loadConfigFrom(path string) (*Config, error) {
	// path comes from the --config flag or the user's home directory
	// #nosec G304
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{APIs: map[string]*APIConfig{}}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if config.APIs == nil {
		config.APIs = map[string]*APIConfig{}
	}

	return &config, nil
}

func saveConfigTo(path string, config *Config) error {
	err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// apiKeyFor names a saved API after its endpoint without scheme or trailing
// slash: "tom.pryv.me", "localhost:3000/tom".
func apiKeyFor(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(endpoint, "/")
	}

	return parsed.Host + strings.TrimSuffix(parsed.Path, "/")
}

func cacheConfig(config *Config) *CacheConfig {
	if config.Cache == nil {
		config.Cache = &CacheConfig{}
	}

	return config.Cache
}

func maskedConfig(config *Config) *Config {
	masked := *config
	masked.APIs = make(map[string]*APIConfig, len(config.APIs))

	for key, apiConfig := range config.APIs {
		copied := *apiConfig
		copied.Token = maskToken(apiConfig.Token)
		masked.APIs[key] = &copied
	}

	return &masked
}

func sortedAPIKeys(config *Config) []string {
	keys := make([]string, 0, len(config.APIs))
	for key := range config.APIs {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for key := range configKeys {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func orNotAvailable(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}
