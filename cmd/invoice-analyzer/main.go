package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/invoice-analyzer/internal/debt"
	"github.com/zombor/invoice-analyzer/internal/extraction"
	"github.com/zombor/invoice-analyzer/internal/invoice"
	"github.com/zombor/invoice-analyzer/internal/matching"
	"github.com/zombor/invoice-analyzer/internal/metrics"
	"github.com/zombor/invoice-analyzer/internal/registry"
	"github.com/zombor/invoice-analyzer/internal/vision"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("invoice-analyzer")
	var (
		port           = fs.IntLong("port", 5001, "HTTP server port")
		dbPath         = fs.StringLong("db", "invoice-analyzer.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./invoices", "Storage directory path")
		registryPath   = fs.StringLong("registry", "companies.json", "Company registry file (.json or .yaml)")
		modelType      = fs.StringLong("model", "gemini", "Model provider: gemini, ollama, anthropic or openai")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", "claude-3-opus-20240229", "Anthropic model name")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		openaiURL      = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		debtURL        = fs.StringLong("debt-url", debt.DefaultDebtURL, "Debt service URL")
		loginURL       = fs.StringLong("login-url", debt.DefaultLoginURL, "Debt service login URL")
		debtAPIKey     = fs.StringLong("debt-api-key", "", "Debt service API key (enables debt queries)")
		loginAPIKey    = fs.StringLong("login-api-key", "", "Login API key")
		clientUsername = fs.StringLong("client-username", "", "Debt service username")
		clientPassword = fs.StringLong("client-password", "", "Debt service password")
		clientID       = fs.StringLong("client-id", debt.DefaultClientID, "External client id sent with debt queries")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat      = fs.StringLong("log-format", "text", "Log format: text or json")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_ANALYZER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing model...", "provider", *modelType)
	model, err := vision.New(context.Background(), vision.Config{
		Provider:       *modelType,
		GeminiKey:      *geminiKey,
		GeminiModel:    *geminiModel,
		OllamaURL:      *ollamaURL,
		OllamaModel:    *ollamaModel,
		AnthropicKey:   *anthropicKey,
		AnthropicModel: *anthropicModel,
		OpenAIKey:      *openaiKey,
		OpenAIModel:    *openaiModel,
		OpenAIURL:      *openaiURL,
	})
	if err != nil {
		slog.Error("Failed to initialize model", "error", err)
		os.Exit(1)
	}
	defer model.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	analyzer := extraction.NewAnalyzerWithDeps(
		registry.NewStore(*registryPath),
		model,
		matching.NewMatcher(),
		logger,
		m,
	)

	// Debt queries are only sent when credentials are configured
	var debts invoice.DebtQuerier
	if *debtAPIKey != "" && *clientUsername != "" {
		tokens := debt.NewTokenSource(*loginURL, debt.Credentials{
			APIKey:   *loginAPIKey,
			Username: *clientUsername,
			Password: *clientPassword,
		}, http.DefaultClient)
		debts = debt.NewClient(*debtURL, *debtAPIKey, tokens, http.DefaultClient, m)
		slog.Info("Debt queries enabled", "url", *debtURL)
	}

	service := invoice.NewService(db, analyzer, store, debts, *clientID)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(service, basicAuth, version,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "registry", *registryPath)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
