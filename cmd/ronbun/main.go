// Package main is the ronbun CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/ronbun/internal/arxiv"
	"github.com/hyperjump/ronbun/internal/cli"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/notify"
	"github.com/hyperjump/ronbun/internal/scheduler"
	"github.com/hyperjump/ronbun/internal/server"
	"github.com/hyperjump/ronbun/internal/service"
	"github.com/hyperjump/ronbun/internal/storage"
	"github.com/hyperjump/ronbun/internal/summarize"
	"github.com/hyperjump/ronbun/internal/watcher"
	"github.com/hyperjump/ronbun/internal/watchlist"
	"github.com/hyperjump/ronbun/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ronbun/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
// A missing file at the default path yields the built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; it supplies OPENAI_API_KEY and TEST_MODE.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "watch":
		runWatch()
	case "check":
		runCheck()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ronbun version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode, cfg.Log.File)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("summarizer", cfg.Summarizer.Provider),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	sched := scheduler.New(logger)
	applySchedule(sched, cfg, components.Service, logger)
	sched.Start()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if resolvedConfigPath != "" {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		cfgWatcher := watcher.NewWatcher(resolvedConfigPath, func(path string) {
			reloaded, err := config.Load(path)
			if err != nil {
				logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("config reloaded", zap.String("path", path))
			components.Service.SetUseJapaneseSummary(reloaded.Notify.UseJapaneseSummary)
			applySchedule(sched, reloaded, components.Service, logger)
		}, watchOpts...)
		if err := cfgWatcher.Start(watchCtx); err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Service,
		components.Keywords,
		&cfg.Server,
		cfg.Storage.DatabasePath,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	sched.Stop(ctx)
}

// applySchedule installs or removes the daily check-and-notify job according to cfg.
func applySchedule(sched *scheduler.Scheduler, cfg *config.Config, svc *service.PaperService, logger *zap.Logger) {
	if !cfg.Schedule.EnabledOrDefault() {
		sched.Unschedule()
		logger.Info("daily check disabled")
		return
	}
	err := sched.Schedule(cfg.Schedule.Time, cfg.Schedule.Timezone, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := svc.CheckAndNotify(ctx); err != nil {
			logger.Error("scheduled check failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Error("failed to schedule daily check", zap.Error(err))
		return
	}
	logger.Info("daily check scheduled",
		zap.String("time", cfg.Schedule.Time),
		zap.String("timezone", cfg.Schedule.Timezone),
		zap.Time("next", sched.Next()),
	)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ronbun search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ronbun search large language models
  ronbun search --categories cs.CL,cs.LG --since-days 5 transformer
  ronbun search --sort title-asc --japanese diffusion
  ronbun search --categories cs.RO              # latest papers of a category
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// searchValues encodes q as /api/search query parameters.
func searchValues(q models.SearchQuery) url.Values {
	v := url.Values{}
	if q.Query != "" {
		v.Set("query", q.Query)
	}
	for _, c := range q.Categories {
		v.Add("categories", c)
	}
	if q.MaxResults > 0 {
		v.Set("max_results", strconv.Itoa(q.MaxResults))
	}
	if q.SinceDays > 0 {
		v.Set("since_days", strconv.Itoa(q.SinceDays))
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.UseJapaneseSummary {
		v.Set("use_japanese_summary", "true")
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	categories := fs.String("categories", "", "comma-separated category tags (e.g. cs.AI,cs.LG)")
	limit := fs.Int("limit", config.DefaultSearchLimit, "number of results")
	sinceDays := fs.Int("since-days", 0, "only papers published in the last N days (0 = no limit)")
	sortKey := fs.String("sort", string(models.SortDateDesc), "sort order: date-desc, date-asc, title-asc, title-desc")
	japanese := fs.Bool("japanese", false, "include Japanese title and summary")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	query := models.SearchQuery{
		Query:              buildSearchQuery(fs.Args()),
		Categories:         splitList(*categories),
		MaxResults:         *limit,
		SinceDays:          *sinceDays,
		Sort:               models.SortKey(*sortKey),
		UseJapaneseSummary: *japanese,
	}
	if err := query.Validate(); err != nil {
		printSearchUsage(fs)
		os.Exit(1)
	}

	var out struct {
		Papers []models.Paper `json:"papers"`
	}
	if err := getJSON(*serverURL+"/api/search?"+searchValues(query).Encode(), &out); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePapers(os.Stdout, out.Papers, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// apiError is the error envelope returned by the server.
type apiError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		var e apiError
		if json.Unmarshal(b, &e) == nil && e.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(target string, out interface{}) error {
	resp, err := http.Get(target)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func sendJSON(method, target string, out interface{}) error {
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ronbun watch <add|remove|list> [flags] [keyword]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	categories := fs.String("categories", "", "comma-separated category scope (add only)")
	outputFormat := fs.String("output", "text", "output format for list: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[3:]))
	keyword := buildSearchQuery(fs.Args())

	var out apiError
	switch sub {
	case "add":
		if keyword == "" {
			fmt.Println("Usage: ronbun watch add [--categories cs.AI,cs.LG] <keyword>")
			os.Exit(1)
		}
		v := url.Values{"keyword": {keyword}}
		for _, c := range splitList(*categories) {
			v.Add("categories", c)
		}
		if err := sendJSON(http.MethodPost, *serverURL+"/api/watch?"+v.Encode(), &out); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out.Message)
	case "remove":
		if keyword == "" {
			fmt.Println("Usage: ronbun watch remove <keyword>")
			os.Exit(1)
		}
		if err := sendJSON(http.MethodDelete, *serverURL+"/api/watch/"+url.PathEscape(keyword), &out); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out.Message)
	case "list":
		format, err := cli.ParseOutputFormat(*outputFormat)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		var list struct {
			Watched struct {
				Entries []models.WatchedKeyword `json:"entries"`
			} `json:"watched_keywords"`
		}
		if err := getJSON(*serverURL+"/api/watch", &list); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteKeywords(os.Stdout, list.Watched.Entries, format)
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	japanese := fs.Bool("japanese", false, "include Japanese titles and summaries")
	sendMail := fs.Bool("notify", false, "mail the result using the stored email config")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	var res *service.CheckResult
	if *sendMail {
		components.Service.SetUseJapaneseSummary(*japanese || cfg.Notify.UseJapaneseSummary)
		res, err = components.Service.CheckAndNotify(ctx)
	} else {
		res, err = components.Service.CheckNewPapers(ctx, *japanese)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteGrouped(os.Stdout, res.Grouped, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if *sendMail && format != cli.OutputJSON {
		fmt.Printf("notified: %t\n", res.Notified)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var st *service.Status
	if *serverURL != "" {
		var out struct {
			Stats service.Status `json:"stats"`
		}
		if err := getJSON(*serverURL+"/api/status", &out); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		st = &out.Stats
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug, cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		st, err = components.Service.Status(context.Background(), cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Arxiv    *arxiv.Client
	Keywords *server.LockedKeywords
	Service  *service.PaperService
	closers  []io.Closer
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	wl, err := watchlist.NewStore(context.Background(), store, watchlist.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Keywords = server.NewLockedKeywords(wl)

	c.Arxiv = arxiv.NewClient(arxiv.Options{
		BaseURL:       cfg.Arxiv.BaseURL,
		UserAgent:     cfg.Arxiv.UserAgent,
		Timeout:       cfg.Arxiv.Timeout,
		RetryAttempts: cfg.Arxiv.RetryAttempts,
		Logger:        logger,
	})
	c.closers = append(c.closers, c.Arxiv)

	summarizer, err := newSummarizer(cfg, logger)
	if err != nil {
		logger.Warn("Japanese summaries disabled", zap.Error(err))
	}
	if cl, ok := summarizer.(io.Closer); ok {
		c.closers = append(c.closers, cl)
	}

	var summ summarize.Summarizer
	if summarizer != nil {
		summ = summarize.NewCached(summarizer, store, logger)
	}
	c.Service = service.New(c.Arxiv, c.Keywords, store, summ, notify.NewMailer(cfg.Notify.Timeout, logger), service.Options{
		MaxResultsPerKeyword: cfg.Arxiv.MaxResultsPerKeyword,
		MaxSearchResults:     cfg.Arxiv.MaxSearchResults,
		TitleLocale:          cfg.Aggregate.TitleLocale,
		UseJapaneseSummary:   cfg.Notify.UseJapaneseSummary,
		Logger:               logger,
	})
	return c, nil
}

// newSummarizer builds the configured summarizer. It returns a nil summarizer
// and an error when the OpenAI provider has no API key.
func newSummarizer(cfg *config.Config, logger *zap.Logger) (summarize.Summarizer, error) {
	if cfg.Summarizer.Provider == config.ProviderStub {
		return summarize.Stub{}, nil
	}
	client, err := summarize.NewOpenAI(summarize.OpenAIOptions{
		APIKey:        cfg.Summarizer.APIKey,
		BaseURL:       cfg.Summarizer.BaseURL,
		Model:         cfg.Summarizer.Model,
		MaxTokens:     cfg.Summarizer.MaxTokens,
		Temperature:   cfg.Summarizer.Temperature,
		TopP:          cfg.Summarizer.TopP,
		RetryAttempts: cfg.Summarizer.RetryAttempts,
		Timeout:       cfg.Summarizer.Timeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func printUsage() {
	fmt.Println(`ronbun - arXiv keyword watcher with Japanese summaries

Usage:
  ronbun server [flags]                 Start the HTTP server and daily check
  ronbun search [flags] <query>         Search arXiv through the server
  ronbun watch <add|remove|list>        Manage watched keywords
  ronbun check [flags]                  Check watched keywords for new papers
  ronbun status [flags]                 Show keyword/summary counts and last check
  ronbun version                        Show version
  ronbun help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ronbun/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string      Server URL (default: http://localhost:8000)
  --categories string  Comma-separated category tags
  --limit int          Number of results (default: 5, max: 100)
  --since-days int     Only papers from the last N days
  --sort string        date-desc, date-asc, title-asc or title-desc
  --japanese           Include Japanese title and summary
  --output string      text, compact or json (default: text)

Watch Flags:
  --server string      Server URL (default: http://localhost:8000)
  --categories string  Category scope for add
  --output string      Output format for list: text or json

Check Flags:
  --config string    Config file path
  --japanese         Include Japanese titles and summaries
  --notify           Mail the result using the stored email config
  --output string    text, compact or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  ronbun server
  ronbun watch add --categories cs.CL,cs.LG "large language model"
  ronbun watch list
  ronbun search --since-days 5 diffusion
  ronbun check --japanese --output json
  ronbun status --server ""`)
}
