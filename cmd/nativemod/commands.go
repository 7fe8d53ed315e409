package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/risor-io/nativemodule"
	"github.com/risor-io/nativemodule/binding"
	"github.com/risor-io/nativemodule/engine"
	"github.com/risor-io/nativemodule/lib"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the bundled module ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader()
		if err != nil {
			return err
		}
		if viper.GetString("output") == "json" {
			return printOutput(loader.ModuleIDs())
		}
		for _, id := range loader.ModuleIDs() {
			fmt.Println(id)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the bundled configuration document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader()
		if err != nil {
			return err
		}
		text := loader.ConfigString()
		var doc any
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			fmt.Println(text)
			return nil
		}
		return printOutput(doc)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <module>",
	Short: "Compile a bundled module and call it",
	Long: `Compile a bundled module and call it in a fresh context.

Bootstrap modules are called with a process map and require; library
modules are loaded through require and their exports are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader()
		if err != nil {
			return err
		}
		sets, err := cmd.Flags().GetStringArray("set")
		if err != nil {
			return err
		}
		process, err := processMap(sets)
		if err != nil {
			return err
		}
		result, err := runModule(cmd.Context(), loader, args[0], process)
		if err != nil {
			return err
		}
		return printOutput(result)
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Compile every module and report code cache usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader()
		if err != nil {
			return err
		}
		if err := loader.Warmup(cmd.Context(), nil, lib.ParametersFor); err != nil {
			return err
		}
		usage := loader.CacheUsage()
		if viper.GetString("output") != "" {
			return printOutput(usage)
		}
		printUsage(usage)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Compile every module and write its code cache to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader()
		if err != nil {
			return err
		}
		if err := loader.Warmup(cmd.Context(), nil, lib.ParametersFor); err != nil {
			return err
		}
		n, err := writeCacheDir(loader, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d code caches (%d bytes) to %s\n",
			n, loader.CacheUsage().TotalBytes(), args[0])
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <dir>",
	Short: "Check which exported code caches are accepted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blobs, err := readCacheDir(args[0])
		if err != nil {
			return err
		}
		loader, err := newLoader(nativemodule.WithCodeCache(blobs))
		if err != nil {
			return err
		}
		if err := loader.Warmup(cmd.Context(), nil, lib.ParametersFor); err != nil {
			return err
		}
		usage := loader.CacheUsage()
		printUsage(usage)
		rejected := rejectedBlobs(blobs, usage)
		for _, id := range rejected {
			info, err := engine.InspectBlob(blobs[id])
			if err != nil {
				fmt.Printf("%s %s: %v\n", red("rejected"), id, err)
				continue
			}
			fmt.Printf("%s %s (schema %d, %s, source %s)\n",
				red("rejected"), id, info.Schema, info.Engine, info.SourceHash)
		}
		if len(rejected) > 0 {
			return fmt.Errorf("%d code caches rejected", len(rejected))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArray("set", nil, "Set a process field (key=value)")
}

func processMap(sets []string) (map[string]any, error) {
	process := map[string]any{
		"platform": "go",
		"argv":     toAnySlice(os.Args),
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set value: %q", kv)
		}
		process[key] = value
	}
	return process, nil
}

func toAnySlice(items []string) []any {
	result := make([]any, len(items))
	for i, s := range items {
		result[i] = s
	}
	return result
}

func runModule(ctx context.Context, loader *nativemodule.Loader, id string, process map[string]any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !loader.Exists(id) {
		return nil, fmt.Errorf("%w: %q", nativemodule.ErrNotFound, id)
	}
	ec := engine.NewContext(nil)
	env := nativemodule.SomeEnv(nativemodule.NewEnvironment("cli"))
	processObj, err := engine.ToObject(process)
	if err != nil {
		return nil, err
	}
	r := binding.NewRequirer(loader, ec, env, processObj)
	if strings.HasPrefix(id, "bootstrap/") {
		return loader.CompileAndCall(ctx, ec, id, lib.BootstrapParameters,
			[]any{processObj, r.Builtin()}, env)
	}
	value, err := r.Require(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.FromObject(value), nil
}

// rejectedBlobs returns the sorted ids of supplied blobs that were not used.
func rejectedBlobs(blobs map[string][]byte, usage nativemodule.CacheUsage) []string {
	var rejected []string
	for id := range blobs {
		if !slices.Contains(usage.CompiledWithCache, id) {
			rejected = append(rejected, id)
		}
	}
	slices.Sort(rejected)
	return rejected
}

func printUsage(usage nativemodule.CacheUsage) {
	for _, id := range usage.CompiledWithCache {
		fmt.Printf("%s %s (%d bytes)\n", green("cached"), id, usage.Bytes[id])
	}
	for _, id := range usage.CompiledWithoutCache {
		fmt.Printf("%s %s (%d bytes)\n", yellow("compiled"), id, usage.Bytes[id])
	}
	fmt.Printf("total: %d bytes\n", usage.TotalBytes())
}
