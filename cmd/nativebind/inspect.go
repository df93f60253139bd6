package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nativebind/internal/driver"
	"nativebind/internal/layout"
	"nativebind/internal/metadata"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <snapshot> <type>",
	Short: "Show the generated model of one type",
	Long:  `Generate a snapshot (or reuse its cached dump) and print the members, offsets and include requirements of one type`,
	Args:  cobra.ExactArgs(2),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	inspectCmd.Flags().Bool("no-cache", false, "bypass the dump cache")
	inspectCmd.Flags().Int("pointer-size", 0, "target pointer size in bytes (4|8)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyGenFlags(cmd, &cfg); err != nil {
		return err
	}
	target, err := layout.TargetForPointerSize(cfg.Target.PointerSize)
	if err != nil {
		return err
	}
	snap, err := metadata.Load(args[0])
	if err != nil {
		return err
	}
	var cache *driver.DiskCache
	if cfg.Cache.Enabled {
		if cache, err = openCache(cfg); err != nil {
			cache = nil
		}
	}
	dump, _, err := driver.GenerateCached(cmd.Context(), cache, driver.Request{
		Snapshot:         snap,
		Target:           target,
		Deny:             cfg.Generate.Deny,
		Jobs:             cfg.Generate.Jobs,
		IncludeTemplates: cfg.Generate.IncludeTemplates,
		MaxDiagnostics:   cfg.Generate.MaxDiagnostics,
	})
	if err != nil {
		return err
	}
	t, ok := dump.Find(args[1])
	if !ok {
		return fmt.Errorf("type %q not found in %s", args[1], args[0])
	}
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}
	renderType(cmd.OutOrStdout(), t)
	return nil
}

func renderType(w io.Writer, t *driver.DumpType) {
	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s (%s)\n", bold.Sprint(t.Kind), bold.Sprint(t.Name), t.Outcome)
	if t.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("error:"), t.Error)
	}
	if t.Parent != "" {
		fmt.Fprintf(w, "  parent:     %s\n", t.Parent)
	}
	if len(t.Interfaces) > 0 {
		fmt.Fprintf(w, "  interfaces: %s\n", strings.Join(t.Interfaces, ", "))
	}
	if t.InstanceOf != "" {
		fmt.Fprintf(w, "  instance of %s\n", t.InstanceOf)
	}
	if t.SharedWith != "" {
		fmt.Fprintf(w, "  shared with %s\n", t.SharedWith)
	}
	if t.Size != nil {
		fmt.Fprintf(w, "  size:       %d (calculated %d, align %d)\n", t.Size.InstanceSize, t.Size.CalculatedSize, t.Size.NaturalAlignment)
	}
	if len(t.Members) > 0 {
		fmt.Fprintln(w, "  members:")
		renderMembers(w, t.Members, 2)
	}
	for _, mi := range t.MethodInstances {
		fmt.Fprintf(w, "  instance %s<%s> -> %s\n", mi.Name, strings.Join(mi.Args, ", "), mi.Return)
	}
	if r := t.Requirements; r != nil {
		fmt.Fprintln(w, "  requirements:")
		for _, f := range r.Forward {
			fmt.Fprintf(w, "    forward %s (%s)\n", f.Type, f.Unit)
		}
		listLine(w, "full", r.Full)
		listLine(w, "impl", r.Impl)
		listLine(w, "depends", r.Depends)
		listLine(w, "support", r.Support)
	}
}

func renderMembers(w io.Writer, members []driver.DumpMember, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, m := range members {
		offset := "      "
		if m.Offset != nil {
			offset = fmt.Sprintf("0x%04x", *m.Offset)
		}
		switch m.Kind {
		case "field":
			fmt.Fprintf(w, "%s%s %s %s %s\n", pad, color.CyanString(offset), m.Storage, m.Type, m.Name)
		case "property":
			fmt.Fprintf(w, "%s%s property %s %s", pad, offset, m.Type, m.Name)
			if m.Backing != "" {
				fmt.Fprintf(w, " (field %s)", m.Backing)
			}
			fmt.Fprintln(w)
		case "method", "constructor":
			params := make([]string, len(m.Params))
			for i, p := range m.Params {
				params[i] = p.Type + " " + p.Name
			}
			fmt.Fprintf(w, "%s%s %s %s(%s) -> %s\n", pad, offset, m.Kind, m.Name, strings.Join(params, ", "), m.Return)
		case "union", "struct":
			fmt.Fprintf(w, "%s%s %s\n", pad, color.CyanString(offset), m.Kind)
			renderMembers(w, m.Members, indent+1)
		default:
			fmt.Fprintf(w, "%s%s %s %s\n", pad, offset, m.Kind, m.Name)
		}
	}
}

func listLine(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "    %-8s %s\n", label+":", strings.Join(items, ", "))
}
