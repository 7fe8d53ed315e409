package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "nativemod",
	Short:   "Inspect and warm the bundled native modules",
	Version: fmt.Sprintf("%s (%s, %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		processGlobalFlags()
	},
	SilenceUsage: true,
}

func init() {
	viper.SetEnvPrefix("nativemod")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.StringP("output", "o", "", "Output format (json, text)")
	flags.String("cache-dir", "", "Seed the code cache from a directory of exported caches")
	if err := bindFlags(rootCmd, "log-level", "no-color", "output", "cache-dir"); err != nil {
		fatal(err)
	}
	if err := rootCmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(
		outputFormatsCompletion, cobra.ShellCompDirectiveNoFileComp)); err != nil {
		fatal(err)
	}

	rootCmd.AddCommand(listCmd, configCmd, runCmd, usageCmd, exportCmd, verifyCmd)
}

// bindFlags binds the named persistent flags of cmd to viper keys of the
// same name.
func bindFlags(cmd *cobra.Command, names ...string) error {
	flags := cmd.PersistentFlags()
	for _, name := range names {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %q: %w", name, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
