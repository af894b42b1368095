// Package main provides a CLI for browsing a remote contents service.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/Jake0826/filebrowser/internal/backoff"
	"github.com/Jake0826/filebrowser/internal/browser"
	"github.com/Jake0826/filebrowser/internal/config"
	"github.com/Jake0826/filebrowser/internal/contents"
	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/metrics"
	"github.com/Jake0826/filebrowser/internal/sessions"
	"github.com/Jake0826/filebrowser/internal/statedb"
)

func main() {
	id := flag.String("id", "", "Browser instance id for path restoration (default: random)")
	dir := flag.String("dir", "/", "Directory to operate in")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: "stderr",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if *id == "" {
		*id = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	svcCfg := contents.Config{
		BaseURL:        cfg.ServerURL,
		Token:          cfg.Token,
		Timeout:        cfg.RequestTimeout,
		DisableChunked: cfg.DisableChunked,
	}
	svc := contents.New(svcCfg)
	registry := sessions.New(sessions.Config{
		BaseURL: cfg.ServerURL,
		Token:   cfg.Token,
		Timeout: cfg.RequestTimeout,
	})

	m, err := browser.New(browser.Config{
		Contents: svc,
		Registry: registry,
		Store:    store,
		Poll: backoff.Policy{
			Base:       cfg.PollBase,
			Ceiling:    cfg.PollCeiling,
			Multiplier: 2.0,
			Jitter:     0.1,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating browser: %v\n", err)
		os.Exit(1)
	}
	defer m.Dispose()

	m.ConnectionFailure.Connect(func(err error) {
		fmt.Fprintf(os.Stderr, "connection failure: %v\n", err)
	})

	if err := m.Restore(ctx, *id); err != nil {
		fmt.Fprintf(os.Stderr, "Error reaching server: %v\n", err)
		os.Exit(1)
	}
	if *dir != "/" {
		if err := m.ChangeDirectory(ctx, *dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error entering %s: %v\n", *dir, err)
			os.Exit(1)
		}
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "ls", "list":
		cmdList(m)
	case "cd":
		cmdChdir(ctx, m, cmdArgs)
	case "upload", "up":
		cmdUpload(ctx, m, cmdArgs)
	case "rm", "delete":
		cmdDelete(ctx, m, cmdArgs)
	case "url":
		cmdURL(m, cmdArgs)
	case "sessions":
		cmdSessions(m)
	case "watch":
		cmdWatch(ctx, m, svcCfg, registry)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`File Browser CLI

Usage: filebrowser-cli [flags] <command> [args]

Flags:
  -id <id>     Browser instance id for path restoration (default: random)
  -dir <path>  Directory to operate in (default: the restored path)

Commands:
  ls                 List the current directory
  cd <path>          Enter a directory and persist it for restoration
  upload <file>      Upload a local file into the current directory
  rm <path>          Delete an entry
  url <path>         Print the download URL for an entry
  sessions           List sessions running on files in the directory
  watch              Poll and stream changes until interrupted

Environment:
  FILEBROWSER_SERVER_URL, FILEBROWSER_TOKEN, FILEBROWSER_POLL_BASE,
  FILEBROWSER_POLL_CEILING, FILEBROWSER_STATE_BACKEND, LOG_LEVEL`)
}

func openStore(cfg *config.Config) (statedb.Store, error) {
	if cfg.StateBackend == "sqlite" {
		return statedb.NewSQLiteStore(cfg.StatePath)
	}
	return statedb.NewFileStore(cfg.StatePath)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Warn("metrics endpoint stopped", logging.Err(err))
	}
}

func cmdList(m *browser.Model) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tTYPE\tSIZE\tMODIFIED\n")
	for _, e := range m.Entries() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			e.Name, e.Type, e.Size, e.LastModified.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func cmdChdir(ctx context.Context, m *browser.Model, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cd <path>")
		os.Exit(1)
	}
	if err := m.ChangeDirectory(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("/%s\n", m.Path())
}

func cmdUpload(ctx context.Context, m *browser.Model, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: upload <file>")
		os.Exit(1)
	}
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m.UploadChanged.Connect(func(uc browser.UploadChange) {
		if uc.Name == "update" && uc.New != nil {
			fmt.Printf("\r%s: %3.0f%%", uc.New.Path, uc.New.Progress*100)
		}
	})

	entry, err := m.Upload(ctx, filepath.Base(args[0]), bufio.NewReader(f), info.Size())
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("uploaded %s (%d bytes)\n", entry.Path, info.Size())
}

func cmdDelete(ctx context.Context, m *browser.Model, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: rm <path>")
		os.Exit(1)
	}
	if err := m.Delete(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdURL(m *browser.Model, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: url <path>")
		os.Exit(1)
	}
	fmt.Println(m.DownloadURL(args[0]))
}

func cmdSessions(m *browser.Model) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tPATH\tKERNEL\n")
	for _, s := range m.Sessions() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Path, s.Kernel.Name)
	}
	w.Flush()
}

// cmdWatch runs the poll loop and streams change notifications until
// the context is cancelled.
func cmdWatch(ctx context.Context, m *browser.Model, svcCfg contents.Config, registry *sessions.Client) {
	m.FileChanged.Connect(func(fc browser.FileChange) {
		switch {
		case fc.Old == nil && fc.New != nil:
			fmt.Printf("created  %s\n", fc.New.Path)
		case fc.Old != nil && fc.New == nil:
			fmt.Printf("deleted  %s\n", fc.Old.Path)
		case fc.Old != nil && fc.New != nil:
			fmt.Printf("changed  %s\n", fc.New.Path)
		}
	})
	m.PathChanged.Connect(func(pc browser.PathChange) {
		fmt.Printf("path     /%s -> /%s\n", pc.Old, pc.New)
	})
	m.Refreshed.Connect(func(struct{}) {
		fmt.Printf("refresh  /%s (%d entries)\n", m.Path(), len(m.Entries()))
	})

	if err := m.Poll(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	feed := contents.NewFeed(svcCfg)
	changes := feed.Subscribe(ctx)
	snapshots := registry.Subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			m.HandleChange(ev)
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			m.UpdateSessions(snap)
			printSessions(snap)
		}
	}
}

func printSessions(snap []sessions.Session) {
	paths := make([]string, 0, len(snap))
	for _, s := range snap {
		paths = append(paths, s.Path)
	}
	fmt.Printf("sessions %s\n", strings.Join(paths, ", "))
}
