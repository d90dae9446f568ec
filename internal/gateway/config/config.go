package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string
	// CORSOrigins restricts browser origins; empty reflects any origin.
	CORSOrigins []string
	LLM         LLMConfig
	Analysis    AnalysisConfig
	PlanStore   PlanStoreConfig
	Artifact    ArtifactConfig
	Telemetry   TelemetryConfig
}

type LLMConfig struct {
	Provider       string // gemini | fake
	APIKey         string
	Model          string
	BaseURL        string
	ThinkingBudget int32
	RPS            float64
	Burst          int
	UsageLedger    string
	PromptDumpDir  string
}

type AnalysisConfig struct {
	Timeout   time.Duration
	CacheSize int
	// CacheDir switches the report cache to disk; CacheTTL bounds its entries.
	CacheDir    string
	CacheTTL    time.Duration
	DemoLatency time.Duration
	// LocalRoot lets remote callers analyze directories beneath it. Empty
	// serves every source id from the bundled sample.
	LocalRoot      string
	StrictSeverity bool
}

type PlanStoreConfig struct {
	PostgresDSN string
	File        string // JSON file origin used when neither Postgres nor S3 is set
	CacheTTL    time.Duration
}

// ArtifactConfig describes the S3-compatible bucket plans are written to.
type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether the bucket settings are complete.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled && a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

type TelemetryConfig struct {
	Stdout bool
}

func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs reads .env, then flags from args, then the environment. Explicit
// environment values win over flag defaults.
func LoadArgs(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	provider := fs.String("llm", "gemini", "llm provider (gemini|fake)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	llmCfg, err := loadLLMConfig(*provider)
	if err != nil {
		return nil, err
	}
	analysisCfg, err := loadAnalysisConfig()
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDuration("PLAN_STORE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        *port,
		Env:         env,
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LLM:         llmCfg,
		Analysis:    analysisCfg,
		PlanStore: PlanStoreConfig{
			PostgresDSN: strings.TrimSpace(os.Getenv("PLAN_STORE_PG_DSN")),
			File:        strings.TrimSpace(os.Getenv("PLAN_STORE_FILE")),
			CacheTTL:    cacheTTL,
		},
		Artifact:  loadArtifactConfig(env),
		Telemetry: TelemetryConfig{Stdout: envBool("OTEL_STDOUT", false)},
	}, nil
}

func loadLLMConfig(flagProvider string) (LLMConfig, error) {
	provider := strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_PROVIDER")), flagProvider, "gemini"))
	switch provider {
	case "gemini", "fake":
	default:
		return LLMConfig{}, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
	}
	rps, err := envFloat("LLM_RPS", 0)
	if err != nil {
		return LLMConfig{}, err
	}
	burst, err := envInt("LLM_BURST", 1)
	if err != nil {
		return LLMConfig{}, err
	}
	budget, err := envInt("GEMINI_THINKING_BUDGET", 0)
	if err != nil {
		return LLMConfig{}, err
	}
	return LLMConfig{
		Provider:       provider,
		APIKey:         firstNonEmpty(strings.TrimSpace(os.Getenv("API_KEY")), strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))),
		Model:          strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		BaseURL:        strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		ThinkingBudget: int32(budget),
		RPS:            rps,
		Burst:          burst,
		UsageLedger:    strings.TrimSpace(os.Getenv("LLM_USAGE_LEDGER")),
		PromptDumpDir:  strings.TrimSpace(os.Getenv("LLM_PROMPT_DUMP_DIR")),
	}, nil
}

func loadAnalysisConfig() (AnalysisConfig, error) {
	timeout, err := envDuration("ANALYSIS_TIMEOUT", 5*time.Minute)
	if err != nil {
		return AnalysisConfig{}, err
	}
	size, err := envInt("ANALYSIS_CACHE_SIZE", 32)
	if err != nil {
		return AnalysisConfig{}, err
	}
	latency, err := envDuration("DEMO_CLONE_LATENCY", 1500*time.Millisecond)
	if err != nil {
		return AnalysisConfig{}, err
	}
	cacheTTL, err := envDuration("ANALYSIS_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return AnalysisConfig{}, err
	}
	return AnalysisConfig{
		Timeout:     timeout,
		CacheSize:   size,
		CacheDir:    strings.TrimSpace(os.Getenv("ANALYSIS_CACHE_DIR")),
		CacheTTL:    cacheTTL,
		DemoLatency: latency,
		LocalRoot:   strings.TrimSpace(os.Getenv("ANALYSIS_LOCAL_ROOT")),
		// model output is upper-cased by default; opt in to exact spellings
		StrictSeverity: envBool("ANALYSIS_STRICT_SEVERITY", false),
	}, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "archaeologist-plans"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("ARTIFACT_S3_USE_SSL", true)
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
