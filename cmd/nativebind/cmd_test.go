package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"nativebind/internal/config"
	"nativebind/internal/driver"
)

func TestReadUIMode(t *testing.T) {
	cases := map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff}
	for in, want := range cases {
		got, err := readUIMode(in)
		if err != nil {
			t.Fatalf("readUIMode(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("readUIMode(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown ui mode")
	}
	if useTUI(uiModeAuto, true) {
		t.Fatalf("auto mode must not draw while the dump goes to stdout")
	}
}

func TestApplyGenFlagsOverridesConfig(t *testing.T) {
	if err := genCmd.ParseFlags([]string{"--jobs", "3", "--deny", "Game.Secret", "--pointer-size", "4", "--no-cache", "--format", "msgpack"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := config.Default()
	cfg.Generate.Deny = []string{"Game.Old"}
	if err := applyGenFlags(genCmd, &cfg); err != nil {
		t.Fatalf("applyGenFlags: %v", err)
	}
	if cfg.Generate.Jobs != 3 || cfg.Target.PointerSize != 4 || cfg.Cache.Enabled || cfg.Output.Format != "msgpack" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if got := strings.Join(cfg.Generate.Deny, ","); got != "Game.Old,Game.Secret" {
		t.Fatalf("deny = %q, want config entries followed by flag entries", got)
	}
	if !cfg.Generate.IncludeTemplates {
		t.Fatalf("unset flags must keep config values")
	}
}

func TestRenderTypeListsMembersAndRequirements(t *testing.T) {
	color.NoColor = true
	off := uint32(0x10)
	typ := &driver.DumpType{
		Name:    "Game.Player",
		Kind:    "class",
		Outcome: "generated",
		Parent:  "UnityEngine.MonoBehaviour",
		Size:    &driver.DumpSize{InstanceSize: 24, CalculatedSize: 24, NaturalAlignment: 8},
		Members: []driver.DumpMember{
			{Kind: "field", Name: "__cordl_internal_health", Type: "int32_t", Storage: "instance", Offset: &off},
			{Kind: "property", Name: "health", Type: "int32_t", Backing: "__cordl_internal_health"},
			{Kind: "method", Name: "Heal", Return: "void", Params: []driver.DumpParam{{Name: "amount", Type: "int32_t"}}},
		},
		Requirements: &driver.DumpRequirements{Full: []string{"UnityEngine.MonoBehaviour"}},
	}
	var buf bytes.Buffer
	renderType(&buf, typ)
	out := buf.String()
	for _, want := range []string{
		"class Game.Player (generated)",
		"0x0010 instance int32_t __cordl_internal_health",
		"property int32_t health (field __cordl_internal_health)",
		"method Heal(int32_t amount) -> void",
		"full:    UnityEngine.MonoBehaviour",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, true, false); err != nil {
		t.Fatalf("renderVersionJSON: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Tool != "nativebind" || payload.GitCommit == "" || payload.BuildDate != "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
