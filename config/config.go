package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        LLMConfig
	Embeddings EmbeddingConfig

	// Course document ingestion and retrieval knobs.
	DocsDir      string
	ChunkSize    int
	ChunkOverlap int
	MaxResults   int
	MaxHistory   int

	// Maximum catalog distance accepted when resolving a fuzzy course name.
	// Zero disables the check and the nearest title always wins.
	CatalogMaxDistance float64

	HTTPAddr string
}

func Load() Config {
	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	return Config{
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/course-agent?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},

		DocsDir:      getEnv("DOCS_DIR", "./docs"),
		ChunkSize:    getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),
		MaxResults:   getEnvInt("MAX_RESULTS", 5),
		MaxHistory:   getEnvInt("MAX_HISTORY", 2),

		CatalogMaxDistance: getEnvFloat("CATALOG_MAX_DISTANCE", 0),

		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
