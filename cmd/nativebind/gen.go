package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nativebind/internal/config"
	"nativebind/internal/driver"
	"nativebind/internal/layout"
	"nativebind/internal/logx"
	"nativebind/internal/metadata"
	"nativebind/internal/observ"
)

var genCmd = &cobra.Command{
	Use:   "gen [flags] <snapshot>",
	Short: "Generate type models from a metadata snapshot",
	Long:  `Resolve every type of a metadata snapshot into a native type model and write the models as a JSON or msgpack dump`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGen,
}

func init() {
	genCmd.Flags().StringP("output", "o", "", "write the dump to this file (default: [output].path or stdout)")
	genCmd.Flags().String("format", "", "dump format (json|msgpack)")
	genCmd.Flags().Int("jobs", 0, "max parallel workers per batch (0=auto)")
	genCmd.Flags().String("ui", "auto", "progress UI mode (auto|on|off)")
	genCmd.Flags().Bool("no-cache", false, "bypass the dump cache")
	genCmd.Flags().StringSlice("deny", nil, "fully qualified type names to exclude (repeatable)")
	genCmd.Flags().Int("pointer-size", 0, "target pointer size in bytes (4|8)")
	genCmd.Flags().Bool("include-templates", false, "also build unspecialized generic definitions")
	genCmd.Flags().Int("max-diagnostics", 0, "maximum diagnostics kept per type (0=unbounded)")
	genCmd.Flags().Bool("quiet", false, "print only errors")
}

// errTypesFailed makes the command exit non-zero after a complete dump.
var errTypesFailed = errors.New("some types failed to generate")

func runGen(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyGenFlags(cmd, &cfg); err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	target, err := layout.TargetForPointerSize(cfg.Target.PointerSize)
	if err != nil {
		return err
	}

	timer := observ.NewTimer()
	var snap *metadata.Snapshot
	if err := timer.Track("load", func() (string, error) {
		var err error
		snap, err = metadata.Load(args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d definitions", len(snap.TypeDefs)), nil
	}); err != nil {
		return err
	}

	var cache *driver.DiskCache
	if cfg.Cache.Enabled {
		cache, err = openCache(cfg)
		if err != nil {
			logx.Logger().Warn("cache disabled", zap.Error(err))
			cache = nil
		}
	}

	req := driver.Request{
		Snapshot:         snap,
		Target:           target,
		Deny:             cfg.Generate.Deny,
		Jobs:             cfg.Generate.Jobs,
		IncludeTemplates: cfg.Generate.IncludeTemplates,
		MaxDiagnostics:   cfg.Generate.MaxDiagnostics,
		Timer:            timer,
	}

	toStdout := cfg.Output.Path == "" || cfg.Output.Path == "-"
	var dump *driver.Dump
	if useTUI(mode, toStdout) {
		dump, _, err = runGenerateWithUI(cmd.Context(), "generating "+filepath.Base(args[0]), cache, req)
	} else {
		dump, _, err = driver.GenerateCached(cmd.Context(), cache, req)
	}
	if err != nil {
		return err
	}

	if err := timer.Track("write", func() (string, error) {
		return cfg.Output.Format, writeOutput(cmd.OutOrStdout(), cfg.Output.Path, dump, cfg.Output.Format)
	}); err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	printDiagnostics(errOut, dump, quiet)
	if !quiet {
		printSummary(errOut, dump, cfg.Output.Path)
	}
	if showTimings {
		fmt.Fprint(errOut, timer.Summary())
	}
	if _, _, failed := dump.Counts(); failed > 0 {
		return errTypesFailed
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(".")
}

// applyGenFlags overrides cfg with the flags set on the command line.
func applyGenFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("output") {
		if cfg.Output.Path, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("format") {
		if cfg.Output.Format, err = flags.GetString("format"); err != nil {
			return err
		}
	}
	if flags.Changed("jobs") {
		if cfg.Generate.Jobs, err = flags.GetInt("jobs"); err != nil {
			return err
		}
	}
	if flags.Changed("deny") {
		extra, err := flags.GetStringSlice("deny")
		if err != nil {
			return err
		}
		cfg.Generate.Deny = append(slices.Clone(cfg.Generate.Deny), extra...)
	}
	if flags.Changed("pointer-size") {
		if cfg.Target.PointerSize, err = flags.GetInt("pointer-size"); err != nil {
			return err
		}
	}
	if flags.Changed("include-templates") {
		if cfg.Generate.IncludeTemplates, err = flags.GetBool("include-templates"); err != nil {
			return err
		}
	}
	if flags.Changed("max-diagnostics") {
		if cfg.Generate.MaxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
			return err
		}
	}
	if flags.Changed("no-cache") {
		noCache, err := flags.GetBool("no-cache")
		if err != nil {
			return err
		}
		cfg.Cache.Enabled = !noCache
	}
	return cfg.Validate()
}

func openCache(cfg config.Config) (*driver.DiskCache, error) {
	if cfg.Cache.Dir == "" {
		return driver.OpenDiskCache("nativebind")
	}
	dir := cfg.Cache.Dir
	if !filepath.IsAbs(dir) && cfg.Path != "" {
		dir = filepath.Join(filepath.Dir(cfg.Path), dir)
	}
	return driver.OpenDiskCacheAt(dir)
}

func writeOutput(stdout io.Writer, path string, dump *driver.Dump, format string) error {
	if path == "" || path == "-" {
		return driver.WriteDump(stdout, dump, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := driver.WriteDump(f, dump, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printDiagnostics(w io.Writer, dump *driver.Dump, quiet bool) {
	for _, d := range dump.Diagnostics {
		if quiet && d.Severity != "ERROR" {
			continue
		}
		label := severityColor(d.Severity).Sprint(strings.ToLower(d.Severity))
		subject := d.Type
		if d.Member != "" {
			subject += "::" + d.Member
		}
		if subject != "" {
			fmt.Fprintf(w, "%s[%s]: %s: %s\n", label, d.Code, subject, d.Message)
		} else {
			fmt.Fprintf(w, "%s[%s]: %s\n", label, d.Code, d.Message)
		}
		for _, note := range d.Notes {
			fmt.Fprintf(w, "  note: %s\n", note)
		}
	}
}

func severityColor(sev string) *color.Color {
	switch sev {
	case "ERROR":
		return color.New(color.FgRed, color.Bold)
	case "WARNING":
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgCyan)
}

func printSummary(w io.Writer, dump *driver.Dump, path string) {
	generated, excluded, failed := dump.Counts()
	dest := path
	if dest == "" || dest == "-" {
		dest = "stdout"
	}
	fmt.Fprintf(w, "%s %d generated, %d excluded, %s across %d batches for %s -> %s\n",
		color.New(color.Bold).Sprint("nativebind:"),
		generated,
		excluded,
		failedLabel(failed),
		len(dump.Order),
		dump.Target,
		dest,
	)
}

func failedLabel(n int) string {
	s := fmt.Sprintf("%d failed", n)
	if n == 0 {
		return color.GreenString(s)
	}
	return color.RedString(s)
}
