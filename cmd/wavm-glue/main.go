package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/glue"
	"github.com/wippyai/wavm-glue/internal/artifact"
	"github.com/wippyai/wavm-glue/verify"
)

type options struct {
	input         string
	moduleName    string
	entry         string
	section       string
	verbose       bool
	verify        bool
	interactive   bool
	legacyConst   bool
	requireObject bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&opts.verify, "verify", false, "Cross-check the module with wazero before writing")
	flag.BoolVar(&opts.interactive, "i", false, "Preview the header in a TUI before writing")
	flag.BoolVar(&opts.legacyConst, "legacy-const-globals", false, "Mark mutable globals const instead of immutable ones")
	flag.BoolVar(&opts.requireObject, "require-object", false, "Fail if the module has no precompiled object")
	flag.StringVar(&opts.entry, "entry", glue.DefaultEntryPoint, "Export called by the generated main")
	flag.StringVar(&opts.section, "section", glue.DefaultPrecompiledSection, "Custom section holding the precompiled object")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wavm-glue [flags] <input.wasm> <output module name>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	opts.input = flag.Arg(0)
	opts.moduleName = flag.Arg(1)

	logger, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	glue.SetLogger(logger)
	verify.SetLogger(logger)
	artifact.SetLogger(logger)

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func (o options) config() glue.Config {
	cfg := glue.DefaultConfig(o.moduleName)
	cfg.EntryPoint = o.entry
	cfg.PrecompiledSection = o.section
	if o.legacyConst {
		cfg.GlobalConstPolicy = glue.ConstMutableLegacy
	}
	return cfg
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg := opts.config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return errors.IO(errors.PhaseDecode, opts.input, err)
	}

	header := artifact.New(cfg.HeaderPath(), artifact.DefaultPerm)
	object := artifact.New(cfg.ObjectPath(), artifact.DefaultPerm)

	summary, err := glue.Convert(data, header, object, cfg)
	if err != nil {
		artifact.AbortAll(header, object)
		return err
	}
	if opts.requireObject && !summary.ObjectFound {
		artifact.AbortAll(header, object)
		return errors.InvalidInput(errors.PhaseExtract, "no "+cfg.PrecompiledSection+" section in "+opts.input)
	}

	var report *verify.Report
	if opts.verify {
		report, err = verify.CheckWithConfig(ctx, data, &verify.Config{
			Section:          cfg.PrecompiledSection,
			MemoryLimitPages: uint32(cfg.MaxMemoryPages),
		})
		if err == nil {
			err = report.Compare(summary, object.Bytes())
		}
		if err != nil {
			artifact.AbortAll(header, object)
			return err
		}
	}

	if opts.interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			artifact.AbortAll(header, object)
			return errors.InvalidInput(errors.PhaseOutput, "interactive mode requires a terminal")
		}
		write, err := runInteractive(cfg, summary, header.Bytes())
		if err != nil || !write {
			artifact.AbortAll(header, object)
			return err
		}
	}

	files := []*artifact.File{header}
	if summary.ObjectFound {
		files = append(files, object)
	} else {
		object.Abort()
	}
	if err := artifact.CommitAll(files...); err != nil {
		return err
	}

	styled := isTerminal(out)
	printSummary(out, cfg, summary, styled)
	if report != nil {
		printReport(out, report, styled)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
)

func styles(styled bool) (label, path func(string) string) {
	if !styled {
		plain := func(s string) string { return s }
		return plain, plain
	}
	label = func(s string) string { return labelStyle.Render(s) }
	path = func(s string) string { return pathStyle.Render(s) }
	return label, path
}

func printSummary(w io.Writer, cfg glue.Config, s glue.Summary, styled bool) {
	label, path := styles(styled)

	fmt.Fprintf(w, "%s %s\n", label("Header:"), path(cfg.HeaderPath()))
	if s.ObjectFound {
		fmt.Fprintf(w, "%s %s (%d bytes)\n", label("Object:"), path(cfg.ObjectPath()), s.ObjectSize)
	} else {
		fmt.Fprintf(w, "%s none\n", label("Object:"))
	}
	fmt.Fprintf(w, "%s types=%d imports=%d functions=%d exports=%d tables=%d memories=%d globals=%d data=%d\n",
		label("Module:"), s.Types, s.Imports, s.Functions, len(s.Exports), s.Tables, s.Memories, s.Globals, s.DataSegments)
	if s.HasMain {
		fmt.Fprintf(w, "%s calls %s\n", label("Main:"), cfg.EntryPoint)
	}
}

func printReport(w io.Writer, r *verify.Report, styled bool) {
	label, _ := styles(styled)

	fmt.Fprintf(w, "%s wazero agrees on %d imports and %d exports\n", label("Verified:"), len(r.Imports), len(r.Exports))
	for _, m := range r.Memories {
		fmt.Fprintf(w, "  memory %s\n", m)
	}
	for _, cs := range r.CustomSections {
		fmt.Fprintf(w, "  section %s (%d bytes)\n", cs.Name, cs.Size)
	}
}
