// Package main is the anshim CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/analysis"
	"github.com/anshimlab/anshim/internal/cli"
	"github.com/anshimlab/anshim/internal/config"
	"github.com/anshimlab/anshim/internal/embedding"
	"github.com/anshimlab/anshim/internal/imagestore"
	"github.com/anshimlab/anshim/internal/keyword"
	"github.com/anshimlab/anshim/internal/llm"
	"github.com/anshimlab/anshim/internal/ocr"
	"github.com/anshimlab/anshim/internal/rag"
	"github.com/anshimlab/anshim/internal/server"
	"github.com/anshimlab/anshim/internal/storage"
	"github.com/anshimlab/anshim/internal/watcher"
	"github.com/anshimlab/anshim/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/anshim/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "anshim server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "analyze":
		runAnalyze()
	case "ocr":
		runOCR()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("anshim version %s\n", version)
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
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// The index build embeds the whole corpus, so the server comes up first
	// and analysis degrades gracefully until the pipeline is ready.
	initCtx, initCancel := context.WithCancel(context.Background())
	defer initCancel()
	go func() {
		if err := components.Pipeline.Initialize(initCtx); err != nil {
			logger.Error("pipeline initialization failed", zap.Error(err))
		}
	}()

	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		watchSvc = watcher.New(cfg.Corpus.Dir, func() {
			if err := components.Pipeline.Rebuild(context.Background()); err != nil {
				logger.Warn("corpus rebuild failed", zap.Error(err))
			}
		}, logger)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Extractor,
		components.Analyzer,
		components.Pipeline,
		components.Storage,
		components.Images,
		cfg,
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
	initCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rebuild := fs.Bool("rebuild", false, "discard any persisted index and re-embed the corpus")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var err error
	if *rebuild {
		err = components.Pipeline.Rebuild(ctx)
	} else {
		err = components.Pipeline.Initialize(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Index ready: %d chunks\n", components.Pipeline.ChunkCount())
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	imagePath := fs.String("image", "", "food label image to extract ingredients from")
	outputFormat := fs.String("output", "text", "output format: text or json")
	noRAG := fs.Bool("no-rag", false, "skip corpus retrieval and ask the model directly")
	_ = fs.Parse(os.Args[2:])

	if *imagePath == "" && fs.NArg() < 1 {
		fmt.Println("Usage: anshim analyze [flags] <ingredient> [ingredient...]")
		fmt.Println("       anshim analyze --image <path>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	ingredients := fs.Args()
	if *imagePath != "" {
		if components.Extractor == nil {
			fmt.Fprintf(os.Stderr, "OCR unavailable: set %s\n", cfg.Providers.OCRKeyEnv)
			os.Exit(1)
		}
		extracted, err := ocr.ExtractIngredients(ctx, components.Extractor, *imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "OCR failed: %v\n", err)
			os.Exit(1)
		}
		ingredients = append(extracted, ingredients...)
	}

	if !*noRAG {
		if err := components.Pipeline.Initialize(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Index build failed: %v\n", err)
			os.Exit(1)
		}
	}

	start := time.Now()
	answer, err := components.Analyzer.Analyze(ctx, ingredients, !*noRAG)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}

	report := &cli.AnalysisReport{
		Ingredients:    ingredients,
		Verdict:        analysis.ExtractVerdict(answer),
		Answer:         answer,
		ProcessingTime: time.Since(start).Seconds(),
	}
	if err := cli.WriteAnalysisReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runOCR() {
	fs := flag.NewFlagSet("ocr", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: anshim ocr [flags] <image-path>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	if components.Extractor == nil {
		fmt.Fprintf(os.Stderr, "OCR unavailable: set %s\n", cfg.Providers.OCRKeyEnv)
		os.Exit(1)
	}
	ingredients, err := ocr.ExtractIngredients(context.Background(), components.Extractor, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "OCR failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngredients(os.Stdout, ingredients, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = read storage directly)`)
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		chunks, err := store.CountChunks(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]interface{}{
			"stored_chunks": chunks,
			"config": map[string]interface{}{
				"corpus_dir":    cfg.Corpus.Dir,
				"chunk_size":    cfg.Index.ChunkSize,
				"chunk_overlap": cfg.Index.ChunkOverlap,
				"top_k":         cfg.Retrieval.TopK,
			},
		}
		if diskBytes, err := storage.DiskUsageBytes(
			cfg.Index.Path, cfg.Index.KeywordPath,
			cfg.Storage.DatabasePath, cfg.Storage.ImageDir,
		); err == nil {
			status["disk_usage_bytes"] = diskBytes
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (map[string]interface{}, error) {
	resp, err := http.Get(serverURL + "/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return status, nil
}

func parseOutputFormat(format string) cli.OutputFormat {
	switch format {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", format)
		os.Exit(1)
		return cli.OutputText
	}
}

// mustInitialize loads config, builds a logger, and wires components for
// one-shot commands, exiting on any failure.
func mustInitialize(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Keyword   keyword.Index
	Pipeline  *rag.Pipeline
	Analyzer  *analysis.Analyzer
	Extractor ocr.TextExtractor
	Images    *imagestore.Store
}

func (c *Components) Close() {
	if c.Pipeline != nil {
		_ = c.Pipeline.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewGeminiEmbedder(embedding.GeminiConfig{
		Endpoint:  cfg.Providers.GenerativeEndpoint,
		Model:     cfg.Providers.EmbeddingModel,
		APIKeyEnv: cfg.Providers.GenerativeKeyEnv,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := llm.NewGeminiGenerator(llm.GeminiConfig{
		Endpoint:  cfg.Providers.GenerativeEndpoint,
		Model:     cfg.Providers.GenerationModel,
		APIKeyEnv: cfg.Providers.GenerativeKeyEnv,
	}, logger)
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Index.KeywordPath)
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	pipeline := rag.New(cfg, embedder, generator, keywordIndex, store, logger)
	analyzer := analysis.NewAnalyzer(generator, pipeline, logger)

	// The OCR key is separate from the generative key, so a missing key only
	// disables the upload endpoint instead of the whole server. The variable
	// stays an interface so a failed constructor leaves it a true nil.
	var extractor ocr.TextExtractor
	if ext, err := ocr.NewExtractor(ocr.VisionConfig{
		Endpoint:  cfg.Providers.OCREndpoint,
		APIKeyEnv: cfg.Providers.OCRKeyEnv,
	}, logger); err != nil {
		logger.Warn("ocr extractor unavailable", zap.Error(err))
	} else {
		extractor = ext
	}

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Keyword:   keywordIndex,
		Pipeline:  pipeline,
		Analyzer:  analyzer,
		Extractor: extractor,
		Images:    imagestore.NewStore(cfg.Storage.ImageDir),
	}, nil
}

func printUsage() {
	fmt.Println(`anshim - pregnancy food ingredient safety analyzer

Usage:
  anshim server [flags]                   Start the HTTP server
  anshim analyze [flags] <ingredient>...  Analyze an ingredient list
  anshim ocr [flags] <image-path>         Extract ingredients from a label image
  anshim index [flags]                    Build the corpus index
  anshim status [flags]                   Show index/storage status
  anshim version                          Show version
  anshim help                             Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/anshim/config.yaml)
  --debug            Enable debug logging

Analyze Flags:
  --config string    Config file path
  --image string     Extract ingredients from this image before analyzing
  --no-rag           Skip corpus retrieval and ask the model directly
  --output string    Output format: text or json (default: text)

Index Flags:
  --config string    Config file path
  --rebuild          Discard any persisted index and re-embed the corpus

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.

Environment:
  GOOGLE_API_KEY          Generative Language API key (embeddings + generation)
  GOOGLE_VISION_API_KEY   Cloud Vision API key (label OCR)

Examples:
  anshim server
  anshim analyze 아스파탐 카페인
  anshim analyze --image label.jpg --output json
  anshim ocr label.jpg
  anshim index --rebuild
  anshim status`)
}
