package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"

	"notetube/internal/command"
	"notetube/internal/config"
	"notetube/internal/diagnostics"
	"notetube/internal/domain"
	"notetube/internal/logging"
	"notetube/internal/models"
	"notetube/internal/pipeline"
	"notetube/internal/render"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	switch sub {
	case "run":
		os.Exit(cmdRun(args))
	case "models":
		os.Exit(cmdModels(args))
	case "diagnostics":
		os.Exit(cmdDiagnostics(args))
	case "help", "-h", "--help":
		printUsage()
	default:
		os.Exit(cmdRun(os.Args[1:]))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `notetube - YouTube video to transcript and organized notes

Usage:
  notetube run [flags] <youtube-url>       Transcribe and summarize a video
  notetube models [flags] [model-id]       List or download whisper.cpp models
  notetube diagnostics [flags]             Check tools and configuration
  notetube help                            Show this help message

Examples:
  notetube https://youtu.be/dQw4w9WgXcQ                         # TXT files in the output dir
  notetube run -format pdf -out ./notes <url>                   # PDF documents
  notetube run -provider remote <url>                           # Hosted transcription
  notetube models base.en                                       # Download a model

For help on specific command: notetube <command> -h
`)
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	settingsPath := fs.String("settings", "", "Settings file (default ~/.notetube/settings.json)")
	formatStr := fs.String("format", "", "Document format: txt, word or pdf (default from settings)")
	outDir := fs.String("out", "", "Output directory (default from settings)")
	provider := fs.String("provider", "", "Transcription provider: local or remote")
	verbose := fs.Bool("v", false, "Print external command output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: notetube run [flags] <youtube-url>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing youtube-url\n")
		fs.Usage()
		return 1
	}

	settings, err := config.Load(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *provider != "" {
		settings.Provider = strings.ToLower(*provider)
	}
	if *outDir != "" {
		settings.OutputDir = *outDir
	}
	if *formatStr != "" {
		settings.Format = *formatStr
	}
	settings = config.Normalize(settings)
	if err := config.Validate(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	format, err := render.ParseFormat(settings.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := logging.New(settings.LogLevel, "text", os.Stderr)
	orchestrator, err := pipeline.NewFromSettings(settings, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hooks := pipeline.Hooks{
		OnStage: func(state domain.RunState) {
			fmt.Fprintf(os.Stderr, "==> %s\n", state)
		},
	}
	if *verbose {
		hooks.OnLog = func(l command.Log) {
			fmt.Fprintln(os.Stderr, l.String())
		}
	}

	result := orchestrator.Run(ctx, uuid.NewString(), argv[0], hooks)
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", result.Err.Kind, result.Err.Message)
		if result.Err.CommandLog.Command != "" && !*verbose {
			fmt.Fprintln(os.Stderr, result.Err.CommandLog.String())
		}
		if result.Transcript != "" {
			saved, _ := saveDocuments(settings.OutputDir, result, format, pipeline.ArtifactTranscript)
			printSaved(saved)
		}
		return 1
	}

	saved, err := saveDocuments(settings.OutputDir, result, format, pipeline.ArtifactTranscript, pipeline.ArtifactNotes)
	printSaved(saved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type savedDocument struct {
	Kind     pipeline.ArtifactKind
	Path     string
	FellBack bool
}

// saveDocuments writes each requested document into dir. A document the
// requested format cannot encode is written as TXT; a failing document does
// not stop the others.
func saveDocuments(dir string, result pipeline.Result, format render.Format, kinds ...pipeline.ArtifactKind) ([]savedDocument, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var saved []savedDocument
	var errs []error
	for _, kind := range kinds {
		doc, err := writeOne(dir, result, kind, format)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		saved = append(saved, doc)
	}
	return saved, errors.Join(errs...)
}

func writeOne(dir string, result pipeline.Result, kind pipeline.ArtifactKind, format render.Format) (savedDocument, error) {
	doc := savedDocument{Kind: kind}
	artifact, err := pipeline.RenderArtifact(result, kind, format)
	if errors.Is(err, domain.ErrUnsupportedCharacter) && format != render.FormatTXT {
		doc.FellBack = true
		artifact, err = pipeline.RenderArtifact(result, kind, render.FormatTXT)
	}
	if err != nil {
		return doc, err
	}
	doc.Path = filepath.Join(dir, artifact.Name)
	return doc, os.WriteFile(doc.Path, artifact.Data, 0o644)
}

func printSaved(saved []savedDocument) {
	for _, doc := range saved {
		if doc.FellBack {
			fmt.Fprintf(os.Stderr, "Note: %s has characters the chosen format cannot encode; saved as TXT\n", doc.Kind)
		}
		fmt.Printf("Saved %s\n", doc.Path)
	}
}

func cmdModels(args []string) int {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	settingsPath := fs.String("settings", "", "Settings file (default ~/.notetube/settings.json)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: notetube models [flags] [model-id]\n\nWithout a model id the catalog is listed.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	settings, err := config.Load(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if fs.NArg() == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tDOWNLOADED")
		for _, model := range models.List(settings.ModelPath) {
			downloaded := ""
			if model.Downloaded {
				downloaded = model.LocalPath
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", model.ID, model.Name, model.SizeLabel, downloaded)
		}
		w.Flush()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New(settings.LogLevel, "text", os.Stderr)
	id := fs.Arg(0)
	fmt.Fprintf(os.Stderr, "Downloading %s...\n", id)
	path, err := models.NewDownloader(log).Install(ctx, settings.ModelPath, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}

func cmdDiagnostics(args []string) int {
	fs := flag.NewFlagSet("diagnostics", flag.ExitOnError)
	settingsPath := fs.String("settings", "", "Settings file (default ~/.notetube/settings.json)")
	fs.Parse(args)

	settings, err := config.Load(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	report := diagnostics.NewChecker().Run(settings)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, item := range report.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.ToUpper(string(item.Status)), item.Name, item.Message)
		if item.Hint != "" {
			fmt.Fprintf(w, "\t\t%s\n", item.Hint)
		}
	}
	w.Flush()
	if failed := report.Failed(); len(failed) > 0 {
		fmt.Fprintf(os.Stderr, "%d check(s) failed for the %s provider: %s\n", len(failed), report.Provider, strings.Join(failed, ", "))
		return 1
	}
	return 0
}
