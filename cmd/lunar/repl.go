package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/glowlabs/lunar"
)

const (
	historyFile = ".lunar_history"
	promptMain  = "lunar> "
	promptCont  = "   ... "
)

func red(s string) string { return "\x1b[31m" + s + "\x1b[0m" }

func cmdRepl(cmd *cobra.Command, args []string) error {
	fmt.Printf("Lunar %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.\n", lunar.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	in := lunar.NewInterpreter(lunar.WithLogger(newLogger()))
	ctx := context.Background()

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return nil
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if strings.ToLower(trimmed) == ":quit" {
				return nil
			}
			fmt.Println("unknown command. Type :quit to exit.")
			continue
		}

		vals, err := in.EvalPersistentSource(ctx, "<repl>", code)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			continue
		}
		if len(vals) > 0 {
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = v.String()
			}
			fmt.Println(strings.Join(parts, "\t"))
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readByParseProbe accumulates lines until the input parses, or fails with
// something other than "incomplete". Ctrl+D on an empty buffer exits.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		_, perr := lunar.ParseInteractive(src)
		if perr == nil {
			return src, true
		}
		if lunar.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}
