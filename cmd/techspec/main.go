// Command techspec renders a technical specification from marked-up text
// into a .docx file without calling a model.
//
//	techspec --title "Posting fix" --author "R. Analyst" \
//	    --input draft.md --output spec.docx --image flow.png
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/techspec/internal/generate"
	"github.com/dgallion1/techspec/internal/render"
	"github.com/dgallion1/techspec/internal/source"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

type cliFlags struct {
	title    string
	author   string
	input    string
	output   string
	images   []string
	sanitize bool
	outline  bool
	verbose  bool
	version  bool
}

func main() {
	if err := run(os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "techspec:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.title, "title", "t", "", "document title")
	fs.StringVarP(&f.author, "author", "a", "", "author shown as Prepared By")
	fs.StringVarP(&f.input, "input", "i", "-", "content file, - for stdin")
	fs.StringVarP(&f.output, "output", "o", render.DefaultOutputName, "output .docx path")
	fs.StringArrayVar(&f.images, "image", nil, "image appended after the content (repeatable)")
	fs.BoolVar(&f.sanitize, "sanitize", false, "drop text outside the known sections, as for model output")
	fs.BoolVar(&f.outline, "outline", false, "print the headings of the written document")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	if err := fs.Parse(args[1:]); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if f.version {
		fmt.Fprintln(stdout, "techspec", Version)
		return nil
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, a ...any) {
		log.Debug(fmt.Sprintf(format, a...))
	}))

	content, err := readInput(f.input, stdin)
	if err != nil {
		return err
	}
	if f.sanitize {
		content = generate.Sanitize(content)
	}

	doc := render.Render(render.Input{
		Title:      f.title,
		PreparedBy: f.author,
		Content:    content,
		ImagePaths: f.images,
	})
	path, err := render.Save(doc, f.output)
	if err != nil {
		return err
	}
	log.Info("document written", "path", path, "blocks", len(doc.Blocks))

	if f.outline {
		return printOutline(path, stdout)
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// printOutline reads the written file back and lists its headings.
func printOutline(path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	tree, err := (&source.DOCXParser{}).Parse(bytes.NewReader(data), path)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	for _, h := range tree.Headings() {
		fmt.Fprintln(w, h)
	}
	return nil
}
