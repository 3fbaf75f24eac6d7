package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/server"
	"github.com/joseph-ayodele/docextract/internal/services/extract"
	"github.com/joseph-ayodele/docextract/internal/utils"
)

const usage = `usage: docextract <command> [flags]

commands:
  upload  -file PATH [-type CONTENT_TYPE]
  get     -id ID
  list    [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-vendor S] [-type T] [-offset N] [-limit N]
  export  [-format csv|xlsx] [-ids all|id1,id2] [-out PATH]
  health
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	if len(os.Args) < 2 {
		printError(usage)
		os.Exit(2)
	}
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := utils.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := run(ctx, app.Service, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		printError("Error: %v\n", err)
		code := 1
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
			code = 2
		}
		app.Close()
		os.Exit(code)
	}
}

var errUsage = errors.New("unknown command")

func run(ctx context.Context, svc *extract.Service, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	switch cmd {
	case "upload":
		file := fs.String("file", "", "document to upload (required)")
		ct := fs.String("type", "", "content type; inferred from the extension when empty")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return common.InvalidInputf("-file is required")
		}
		data, err := readUpload(*file)
		if err != nil {
			return err
		}
		res, err := svc.Upload(ctx, extract.UploadRequest{Data: data, ContentType: *ct, Filename: filepath.Base(*file)})
		if err != nil {
			return err
		}
		return writeJSON(out, res)

	case "get":
		id := fs.String("id", "", "extraction id (required)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		e, err := svc.Get(ctx, *id)
		if err != nil {
			return err
		}
		return writeJSON(out, e)

	case "list":
		var (
			from   = fs.String("from", "", "issue date lower bound YYYY-MM-DD")
			to     = fs.String("to", "", "issue date upper bound YYYY-MM-DD")
			vendor = fs.String("vendor", "", "vendor name substring")
			typ    = fs.String("type", "", "document type")
			offset = fs.Int("offset", 0, "rows to skip")
			limit  = fs.Int("limit", 0, "page size (default 100, max 1000)")
		)
		if err := fs.Parse(args); err != nil {
			return err
		}
		f := entity.ListFilter{Vendor: *vendor, DocumentType: *typ, Offset: *offset, Limit: *limit}
		var err error
		if f.DateFrom, err = utils.ParseYMD("from", *from); err != nil {
			return err
		}
		if f.DateTo, err = utils.ParseYMD("to", *to); err != nil {
			return err
		}
		page, err := svc.List(ctx, f)
		if err != nil {
			return err
		}
		return writeJSON(out, page)

	case "export":
		var (
			format = fs.String("format", "csv", "csv or xlsx")
			ids    = fs.String("ids", "all", "comma-separated extraction ids, or all")
			path   = fs.String("out", "", "output file; stdout when empty")
		)
		if err := fs.Parse(args); err != nil {
			return err
		}
		file, err := svc.Export(ctx, *format, *ids)
		if err != nil {
			return err
		}
		if *path == "" {
			_, err = out.Write(file.Data)
			return err
		}
		return os.WriteFile(*path, file.Data, 0o644)

	case "health":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return writeJSON(out, svc.Health(ctx))

	default:
		printError(usage)
		return fmt.Errorf("%w %q", errUsage, cmd)
	}
}

// readUpload rejects oversized files before reading them into memory.
func readUpload(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, common.InvalidInputf("%s is a directory", path)
	}
	if info.Size() > constants.MaxUploadBytes {
		return nil, common.FileTooLargeError(int(info.Size()), constants.MaxUploadBytes)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
