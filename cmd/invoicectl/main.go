package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-extractor/internal/app"
	"github.com/dvloznov/invoice-extractor/internal/config"
	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/export"
	"github.com/dvloznov/invoice-extractor/internal/gcsuploader"
	infraBQ "github.com/dvloznov/invoice-extractor/internal/infra/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/logger"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse(os.Args[2:])
	case "upload":
		runUpload(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Invoice extractor CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  invoicectl <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Extract and validate one invoice (file, gs:// URI or text)")
	fmt.Println("  upload    Upload an invoice file to GCS")
	fmt.Println("  export    Write invoices to an XLSX workbook")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'invoicectl <command> -h' for more information on a command.")
}

// setup loads the configuration and builds a logger writing to stderr, so
// that command output on stdout stays machine-readable.
func setup() (*config.Config, zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewFromConfig(logger.Config{Output: os.Stderr})
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewFromConfig(logger.Config{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Output:      os.Stderr,
	})
	return cfg, log
}

func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a local PDF or image")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the invoice document")
	text := fs.String("text", "", "Invoice text, used instead of a document")
	mimeType := fs.String("mime", "", "Media type of the document (detected when empty)")
	format := fs.String("format", "json", "Output format: json or markdown")
	persist := fs.Bool("persist", false, "Store results in BigQuery (requires BQ_PROJECT_ID)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall timeout")
	fs.Parse(args)

	cfg, log := setup()

	if *filePath == "" && fs.NArg() == 1 {
		*filePath = fs.Arg(0)
	}
	src := document.Source{Path: *filePath, URI: *gcsURI, Text: *text, MIMEType: *mimeType}
	if src.Path == "" && src.URI == "" && src.Text == "" {
		log.Fatal().Msg("Usage: invoicectl parse [-file PATH | -gcs-uri gs://... | -text TEXT] [-format json|markdown]")
	}
	if err := checkFormat(*format); err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if !*persist {
		cfg.BigQuery.ProjectID = ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services, err := app.NewServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	res, err := services.Processor.ProcessInvoice(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Str("source", src.Origin()).Msg("Parse failed")
	}

	if err := writeResult(os.Stdout, *format, res); err != nil {
		log.Fatal().Err(err).Msg("Failed to write result")
	}
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name (defaults to GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local invoice file")
	fs.Parse(args)

	cfg, log := setup()

	if *bucketName == "" {
		*bucketName = cfg.Storage.Bucket
	}
	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: invoicectl upload -bucket NAME -file PATH [-object NAME]")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Println(uri)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "invoices.xlsx", "Output workbook path")
	fromBigQuery := fs.Bool("from-bigquery", false, "Export stored invoices instead of parsing files")
	limit := fs.Int("limit", infraBQ.DefaultListLimit, "Maximum number of stored invoices to export")
	concurrency := fs.Int("concurrency", pipeline.DefaultConcurrency, "Documents parsed in parallel")
	persist := fs.Bool("persist", false, "Store parsed results in BigQuery")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall timeout")
	fs.Parse(args)

	cfg, log := setup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var entries []export.Entry
	if *fromBigQuery {
		if !cfg.BigQuery.Enabled() {
			log.Fatal().Msg("BQ_PROJECT_ID is required with -from-bigquery")
		}
		repo, err := infraBQ.NewBigQueryInvoiceRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()

		entries, err = export.EntriesFromRepository(ctx, repo, *limit)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load invoices")
		}
	} else {
		if fs.NArg() == 0 {
			log.Fatal().Msg("Usage: invoicectl export [-out FILE] PATH|gs://URI...  or  invoicectl export -from-bigquery")
		}
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
		if !*persist {
			cfg.BigQuery.ProjectID = ""
		}

		services, err := app.NewServices(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize services")
		}
		defer services.Close()

		srcs := make([]document.Source, fs.NArg())
		for i, arg := range fs.Args() {
			srcs[i] = sourceFromArg(arg)
		}

		items, err := services.Processor.ProcessAll(ctx, srcs, *concurrency)
		if err != nil {
			log.Fatal().Err(err).Msg("Export interrupted")
		}
		entries = entriesFromBatch(log, items)
	}

	data, err := export.WorkbookXLSX(ctx, entries)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build workbook")
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write workbook")
	}

	log.Info().Str("out", *out).Int("invoices", len(entries)).Msg("Export completed")
}

// sourceFromArg treats gs:// arguments as GCS URIs and everything else as
// local paths.
func sourceFromArg(arg string) document.Source {
	if strings.HasPrefix(arg, "gs://") {
		return document.Source{URI: arg}
	}
	return document.Source{Path: arg}
}

// entriesFromBatch keeps the successful items; failures are logged.
func entriesFromBatch(log zerolog.Logger, items []pipeline.BatchItem) []export.Entry {
	entries := make([]export.Entry, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			log.Warn().Err(item.Err).Str("source", item.Source.Origin()).Msg("Skipping document")
			continue
		}
		entries = append(entries, export.EntryFromResult(item.Source.Origin(), item.Result))
	}
	return entries
}

func checkFormat(format string) error {
	switch format {
	case "json", "markdown":
		return nil
	}
	return fmt.Errorf("unknown format %q (want json or markdown)", format)
}

func writeResult(w io.Writer, format string, res *pipeline.Result) error {
	if format == "markdown" {
		_, err := fmt.Fprintln(w, res.Summary)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
