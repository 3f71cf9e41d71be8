package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coursemat/course-agent/api"
	"github.com/coursemat/course-agent/chat"
	"github.com/coursemat/course-agent/config"
	"github.com/coursemat/course-agent/database"
	"github.com/coursemat/course-agent/embeddings"
	"github.com/coursemat/course-agent/knowledge"
	"github.com/coursemat/course-agent/llm"
	"github.com/coursemat/course-agent/store"
	"github.com/coursemat/course-agent/tools"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "query":
		queryCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type app struct {
	svc     *chat.Service
	cleanup func(context.Context)
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}

	neo4jDriver, err := database.NewNeo4jDriver(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("neo4j connection: %w", err)
	}

	cleanup := func(ctx context.Context) {
		pgPool.Close()
		if err := neo4jDriver.Close(ctx); err != nil {
			logger.Printf("close neo4j driver: %v", err)
		}
	}

	if err := database.EnsureCourseSchema(ctx, pgPool, cfg.Embeddings.Dimension); err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	vectorStore := store.NewPostgresVectorStore(pgPool, embedder, cfg.MaxResults, cfg.CatalogMaxDistance, logger)
	graph := knowledge.NewCourseGraph(neo4jDriver)

	manager := tools.NewManager(
		tools.NewSearchTool(vectorStore, logger),
		tools.NewOutlineTool(vectorStore, graph, logger),
	)

	svc, err := chat.NewService(vectorStore, graph, llmClient, manager, chat.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MaxHistory:   cfg.MaxHistory,
	}, logger)
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("service setup: %w", err)
	}

	return &app{svc: svc, cleanup: cleanup}, nil
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	docsDir := flags.String("docs", cfg.DocsDir, "path to directory containing course documents")
	addr := flags.String("addr", cfg.HTTPAddr, "HTTP listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer application.cleanup(context.Background())

	loaded, titles, err := application.svc.LoadCourses(ctx, *docsDir)
	if err != nil {
		logger.Fatalf("load courses: %v", err)
	}
	logger.Printf("loaded %d new courses: %s", loaded, strings.Join(titles, ", "))

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(application.svc, *docsDir, logger).Handler(),
	}

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	docsDir := flags.String("docs", cfg.DocsDir, "path to directory containing course documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer application.cleanup(context.Background())

	loaded, titles, err := application.svc.LoadCourses(ctx, *docsDir)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	logger.Printf("loaded %d new courses", loaded)
	for _, title := range titles {
		logger.Printf("  %s", title)
	}
}

func queryCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the course materials")
	session := flags.String("session", "", "session id to continue a prior conversation")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse query flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer application.cleanup(context.Background())

	resp, err := application.svc.Answer(ctx, *question, *session)
	if err != nil {
		logger.Fatalf("query failed: %v", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range resp.Sources {
			if source.Link != "" {
				fmt.Printf("%d. %s (%s)\n", idx+1, source.Label, source.Link)
			} else {
				fmt.Printf("%d. %s\n", idx+1, source.Label)
			}
		}
	}
	fmt.Printf("\nSession: %s\n", resp.SessionID)
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all loaded course material from Postgres and Neo4j. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer application.cleanup(context.Background())

	if err := application.svc.ClearData(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}

	logger.Println("course data removed")
}

func printUsage() {
	fmt.Println("Usage: course-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Load course documents and serve the query API")
	fmt.Println("  ingest   Load course documents into the vector store (use --docs to override the directory)")
	fmt.Println("  query    Ask a one-shot question about the loaded courses")
	fmt.Println("  clear    Remove all loaded course material")
}
