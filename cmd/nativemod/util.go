package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/risor-io/nativemodule"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

func isTerminalIO() bool {
	stdout := os.Stdout.Fd()
	return isatty.IsTerminal(stdout) || isatty.IsCygwinTerminal(stdout)
}

var outputFormatsCompletion = []string{"json", "text"}

func getOutput(result any, format string) (string, error) {
	switch strings.ToLower(format) {
	case "":
		// With an unspecified format, print nothing for nil, JSON when the
		// value marshals, and its string form otherwise.
		if result == nil {
			return "", nil
		}
		output, err := getOutputJSON(result)
		if err != nil {
			return fmt.Sprintf("%v", result), nil
		}
		return string(output), nil
	case "json":
		output, err := getOutputJSON(result)
		if err != nil {
			return "", err
		}
		return string(output), nil
	case "text":
		return fmt.Sprintf("%v", result), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func getOutputJSON(result any) ([]byte, error) {
	if viper.GetBool("no-color") || !isTerminalIO() {
		return json.MarshalIndent(result, "", "  ")
	}
	return prettyjson.Marshal(result)
}

func printOutput(result any) error {
	output, err := getOutput(result, viper.GetString("output"))
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Println(output)
	}
	return nil
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags() {
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: viper.GetBool("no-color"),
	}).Level(level).With().Timestamp().Logger()
}

// newLoader builds a loader over the bundled library, seeded from the
// cache directory when one is configured.
func newLoader(extra ...nativemodule.Option) (*nativemodule.Loader, error) {
	opts := []nativemodule.Option{nativemodule.WithLogger(newLogger())}
	if dir := viper.GetString("cache-dir"); dir != "" {
		blobs, err := readCacheDir(dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nativemodule.WithCodeCache(blobs))
	}
	return nativemodule.New(append(opts, extra...)...)
}
