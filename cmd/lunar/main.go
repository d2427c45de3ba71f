// Command lunar runs, checks, and interactively evaluates Lunar scripts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/glowlabs/lunar"
	"github.com/glowlabs/lunar/registry"
)

var (
	flagVerbose  bool
	flagManifest string
	flagTimeout  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "lunar",
		Short:         "Lunar scripting language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [file ...]",
		Short: "Run script files or a manifest",
		RunE:  cmdRun,
	}
	runCmd.Flags().StringVarP(&flagManifest, "manifest", "m", "", "YAML script manifest")
	runCmd.Flags().DurationVarP(&flagTimeout, "timeout", "t", 0, "cancel evaluation after this duration")

	checkCmd := &cobra.Command{
		Use:   "check <file ...>",
		Short: "Parse files and report syntax errors without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdCheck,
	}

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		RunE:  cmdRepl,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lunar %s (built %s)\n", lunar.Version, lunar.BuildDate)
		},
	}

	root.AddCommand(runCmd, checkCmd, replCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func cmdRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && flagManifest == "" {
		return fmt.Errorf("nothing to run: pass files or --manifest")
	}

	var records []lunar.LoadRecord
	if flagManifest != "" {
		store, err := registry.LoadManifest(flagManifest)
		if err != nil {
			return err
		}
		records = store.Records()
	}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		records = append(records, lunar.LoadRecord{Name: path, Source: string(data)})
	}

	ctx := context.Background()
	if flagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagTimeout)
		defer cancel()
	}

	in := lunar.NewInterpreter(lunar.WithLogger(newLogger()))
	results, err := in.LoadScripts(ctx, records)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintln(os.Stderr, r.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(results))
	}
	return nil
}

func cmdCheck(cmd *cobra.Command, args []string) error {
	bad := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, perr := lunar.Parse(string(data)); perr != nil {
			bad++
			fmt.Fprintln(os.Stderr, lunar.WrapErrorWithName(perr, path, string(data)))
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d files have syntax errors", bad, len(args))
	}
	return nil
}
