package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/typefun/internal/config"
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/reduce"
	"github.com/funvibe/typefun/internal/typeexpr"
	"github.com/funvibe/typefun/internal/typegraph"
	"github.com/funvibe/typefun/internal/userfunc"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorGray  = "\033[90m"
)

func main() {
	limitsPath := flag.String("limits", "", "path to a YAML limits file")
	force := flag.Bool("force", false, "treat ambiguous blocked outcomes as final")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: typefun [flags] <type expression>\n")
		fmt.Fprintf(flag.CommandLine.Output(), "       echo '<type expression>' | typefun [flags]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "examples:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  typefun 'add<number, number>'\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  typefun 'index<{ name: string }, \"name\">'\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	input, err := readInput()
	if err != nil {
		fatal(err.Error())
	}

	limits := config.DefaultLimits()
	if *limitsPath != "" {
		limits, err = config.LoadLimits(*limitsPath)
		if err != nil {
			fatal(err.Error())
		}
	}

	useColor := !*noColor &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	exit := 0
	builtins := typegraph.NewBuiltins()
	arena := typegraph.NewArena()

	entry, err := typeexpr.Parse(input, arena, builtins)
	if err != nil {
		fatal("parse error: " + err.Error())
	}

	ctx := &reduce.Context{
		Arena:      arena,
		Builtins:   builtins,
		Normalizer: normalize.NewNormalizer(builtins, arena),
		Runtime:    userfunc.NewRuntime(limits),
		Limits:     limits,
		Location:   "<argument>",
	}
	report := reduce.Reduce(entry, ctx, *force)

	fmt.Println(paint(typegraph.Follow(entry).String(), colorGreen, useColor))
	for _, diag := range report.Errors {
		fmt.Println(paint(diag.String(), colorRed, useColor))
		exit = 1
	}
	if !report.BlockedTypes.Empty() {
		for _, t := range report.BlockedTypes.Slice() {
			fmt.Println(paint("blocked on "+t.String(), colorGray, useColor))
		}
	}
	os.Exit(exit)
}

func readInput() (string, error) {
	if flag.NArg() > 0 {
		return strings.Join(flag.Args(), " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", fmt.Errorf("no type expression given")
	}
	return input, nil
}

func paint(s, color string, enabled bool) string {
	if !enabled {
		return s
	}
	return color + s + colorReset
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "typefun: "+msg)
	os.Exit(2)
}
