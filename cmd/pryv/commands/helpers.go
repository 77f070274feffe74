package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	OutputFormatJSON  = constants.FormatJSON
	OutputFormatYAML  = constants.FormatYAML
	OutputFormatTable = constants.FormatTable
)

// Settings are the global flags, environment and config file values resolved
// once per command run.
type Settings struct {
	ConfigFile     string
	ServiceInfoURL string
	API            string
	Output         string
	Verbose        bool
	Cache          CacheSettings
	// Calls collects per-route statistics in verbose mode.
	Calls *pryv.CallRecorder
}

// CacheSettings select the discovery document cache used by the CLI.
type CacheSettings struct {
	Type    string
	NATSURL string
	Bucket  string
}

// currentSettings reads the settings from viper.
func currentSettings() *Settings {
	settings := &Settings{
		ConfigFile:     configFilePath(),
		ServiceInfoURL: viper.GetString("service_info_url"),
		API:            viper.GetString("api"),
		Output:         viper.GetString("output"),
		Verbose:        viper.GetBool("verbose"),
		Cache: CacheSettings{
			Type:    viper.GetString("cache.type"),
			NATSURL: viper.GetString("cache.nats_url"),
			Bucket:  viper.GetString("cache.bucket"),
		},
	}

	if settings.Verbose {
		settings.Calls = pryv.NewCallRecorder()
	}

	return settings
}

// stderrLogger prints library log lines as "LEVEL message key=value ...".
type stderrLogger struct {
	mutex sync.Mutex
	out   io.Writer
}

func newStderrLogger() *stderrLogger {
	return &stderrLogger{out: os.Stderr}
}

func (l *stderrLogger) Debug(msg string, fields map[string]interface{}) { l.log("DEBUG", msg, fields) }
func (l *stderrLogger) Info(msg string, fields map[string]interface{})  { l.log("INFO", msg, fields) }
func (l *stderrLogger) Warn(msg string, fields map[string]interface{})  { l.log("WARN", msg, fields) }
func (l *stderrLogger) Error(msg string, fields map[string]interface{}) { l.log("ERROR", msg, fields) }

func (l *stderrLogger) log(level, msg string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var line strings.Builder

	line.WriteString(time.Now().Format(time.TimeOnly))
	line.WriteString(" ")
	line.WriteString(level)
	line.WriteString(" ")
	line.WriteString(msg)

	for _, key := range keys {
		_, _ = fmt.Fprintf(&line, " %s=%v", key, fields[key])
	}

	line.WriteString("\n")

	l.mutex.Lock()
	defer l.mutex.Unlock()

	_, _ = io.WriteString(l.out, line.String())
}

// writeOutput encodes value as JSON or YAML, or calls table for the table format.
func writeOutput(out io.Writer, format string, value interface{}, table func(*tablewriter.Table)) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf("failed to encode as JSON: %w", err)
		}

		return nil
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(out)

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf("failed to encode as YAML: %w", err)
		}

		return encoder.Close()
	default:
		writer := tablewriter.NewWriter(out)
		table(writer)

		err := writer.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	}
}

// mapTable renders the top-level keys of a decoded JSON object, one row each,
// with non-string values shown as compact JSON.
func mapTable(body map[string]interface{}) func(*tablewriter.Table) {
	return func(table *tablewriter.Table) {
		table.Header("Key", "Value")

		keys := make([]string, 0, len(body))
		for key := range body {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			_ = table.Append(key, formatValue(body[key]))
		}
	}
}

func formatValue(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return constants.NotAvailable
	case string:
		return typed
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}

		return string(data)
	}
}

// parseQuery turns repeated key=value flags into query values.
func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	query := url.Values{}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidQueryParam, pair)
		}

		query.Add(key, value)
	}

	return query, nil
}

// label turns a config or JSON key into a table label ("service_info_url" → "Service Info Url").
func label(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

func maskToken(token string) string {
	if token == "" {
		return constants.NotAvailable
	}

	return constants.MaskedSecret
}
