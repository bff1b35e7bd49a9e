package config

// ArchiveConfig controls the vector archive of section sources.
// EmbeddingProvider is "googleai" or "openai".
type ArchiveConfig struct {
	Enabled           bool
	EmbeddingProvider string
	EmbeddingModel    string
	Dimensions        int
	ChunkSize         int
	ChunkOverlap      int
	CollectionName    string
}

func LoadArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:           getEnvAsBool("ARCHIVE_ENABLED", false),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "googleai"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		Dimensions:        getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
		ChunkSize:         getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 200),
		CollectionName:    getEnv("COLLECTION_NAME", "report_sources"),
	}
}
