package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"nativebind/internal/driver"
	"nativebind/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// useTUI reports whether progress is drawn. Auto mode needs a terminal on
// both stdout and stderr since the dump may be written to stdout.
func useTUI(mode uiMode, dumpToStdout bool) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	}
	return !dumpToStdout && isTerminal(os.Stdout) && isTerminal(os.Stderr)
}

type genOutcome struct {
	dump *driver.Dump
	res  *driver.Result
	err  error
}

// runGenerateWithUI runs the cached generation in the background and draws
// its progress until the event stream closes.
func runGenerateWithUI(ctx context.Context, title string, cache *driver.DiskCache, req driver.Request) (*driver.Dump, *driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan genOutcome, 1)

	go func() {
		req.Progress = driver.ChannelSink{Ch: events}
		dump, res, err := driver.GenerateCached(ctx, cache, req)
		close(events)
		outcomeCh <- genOutcome{dump: dump, res: res, err: err}
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, events), tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// The worker blocks on a full channel once the program is gone.
	for range events {
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.dump, outcome.res, uiErr
	}
	return outcome.dump, outcome.res, outcome.err
}
