// Command analyze-invoice analyzes one invoice file and prints the
// extracted record as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-analyzer/internal/extraction"
	"github.com/zombor/invoice-analyzer/internal/matching"
	"github.com/zombor/invoice-analyzer/internal/registry"
	"github.com/zombor/invoice-analyzer/internal/vision"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := ff.NewFlagSet("analyze-invoice")
	var (
		registryPath   = fs.StringLong("registry", "companies.json", "Company registry file (.json or .yaml)")
		modelType      = fs.StringLong("model", "anthropic", "Model provider: gemini, ollama, anthropic or openai")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", "claude-3-opus-20240229", "Anthropic model name")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		openaiURL      = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		verbose        = fs.BoolLong("verbose", "Log analysis progress to stderr")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("INVOICE_ANALYZER")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if len(fs.GetArgs()) != 1 {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(stderr, "error: expected exactly one invoice file")
		return 1
	}
	path := fs.GetArgs()[0]

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	model, err := vision.New(ctx, vision.Config{
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
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer model.Close()

	analyzer := extraction.NewAnalyzerWithDeps(registry.NewStore(*registryPath), model, matching.NewMatcher(), logger, nil)
	return analyze(ctx, analyzer, path, data, stdout, stderr)
}

type invoiceAnalyzer interface {
	Analyze(ctx context.Context, data []byte, mediaType string) (*extraction.InvoiceRecord, error)
}

func analyze(ctx context.Context, analyzer invoiceAnalyzer, path string, data []byte, stdout, stderr io.Writer) int {
	record, err := analyzer.Analyze(ctx, data, vision.MediaTypeForFilename(path))
	if err != nil {
		fmt.Fprintf(stderr, "No se pudieron extraer datos de la factura: %v\n", err)
		fmt.Fprintf(stderr, "reason: %s\n", extraction.Reason(err))
		var analysisErr *extraction.AnalysisError
		if errors.As(err, &analysisErr) {
			fmt.Fprintf(stderr, "stage: %s\n", analysisErr.Stage)
			if analysisErr.RawResponse != "" {
				fmt.Fprintf(stderr, "raw response:\n%s\n", analysisErr.RawResponse)
			}
		}
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
