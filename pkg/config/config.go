package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/mikeboe/deep-research/pkg/clients"
)

// Config is the process-level configuration shared by the binaries.
type Config struct {
	Port        string
	DatabaseURL string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
	GoogleAPIKey    string
	OllamaServerURL string
	TavilyAPIKey    string
	MistralAPIKey   string

	// SearchAPI forces every search onto one provider when set.
	SearchAPI string

	Archive ArchiveConfig
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		OllamaServerURL: getEnv("OLLAMA_SERVER_URL", ""),
		TavilyAPIKey:    getEnv("TAVILY_API_KEY", ""),
		MistralAPIKey:   getEnv("MISTRAL_API_KEY", ""),
		SearchAPI:       getEnv("SEARCH_API", ""),
		Archive:         LoadArchiveConfig(),
	}
}

// Keys returns the generation credentials.
func (c *Config) Keys() clients.Keys {
	return clients.Keys{
		AnthropicAPIKey: c.AnthropicAPIKey,
		OpenAIAPIKey:    c.OpenAIAPIKey,
		DeepSeekAPIKey:  c.DeepSeekAPIKey,
		GoogleAPIKey:    c.GoogleAPIKey,
		OllamaServerURL: c.OllamaServerURL,
	}
}

// OverridesFromViper collects the report settings explicitly set in v
// (flags bound to v, a config file, or v.Set) as Overrides.
func OverridesFromViper(v *viper.Viper) Overrides {
	var o Overrides

	str := func(key string) *string {
		if !v.IsSet(key) {
			return nil
		}
		s := v.GetString(key)
		return &s
	}
	num := func(key string) *int {
		if !v.IsSet(key) {
			return nil
		}
		n := v.GetInt(key)
		return &n
	}

	o.ReportStructure = str("report_structure")
	o.NumberOfQueries = num("number_of_queries")
	o.MaxSearchDepth = num("max_search_depth")
	o.MaxPlanIterations = num("max_plan_iterations")
	o.PlannerProvider = str("planner_provider")
	o.PlannerModel = str("planner_model")
	o.WriterProvider = str("writer_provider")
	o.WriterModel = str("writer_model")
	o.SearchAPI = str("search_api")
	if v.IsSet("merge_query_results") {
		b := v.GetBool("merge_query_results")
		o.MergeQueryResults = &b
	}
	if v.IsSet("search_options") {
		o.SearchOptions = v.GetStringMap("search_options")
	}
	return o
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return value
}
