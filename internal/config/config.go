package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds OriGuard configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Policy     PolicyConfig     `yaml:"policy"`
	Moderation ModerationConfig `yaml:"moderation"`
	Search     SearchConfig     `yaml:"search"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Debug      DebugConfig      `yaml:"debug"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`           // HTTP listen address, e.g. ":8090"
	MaxUploadMB  int64  `yaml:"max_upload_mb"`  // body cap for image checks
	ReadTimeoutS int    `yaml:"read_timeout_s"` // request read timeout
}

// PolicyConfig is the versioned scoring policy. Signal weights and decision
// thresholds are pinned together so a verdict is reproducible from
// (version, inputs) alone.
type PolicyConfig struct {
	Version         string             `yaml:"version"`
	Weights         map[string]float64 `yaml:"weights"`
	BlockThreshold  float64            `yaml:"block_threshold"`
	ReviewThreshold float64            `yaml:"review_threshold"`
}

type ModerationConfig struct {
	BannedTerms []string `yaml:"banned_terms"`
	Severity    float64  `yaml:"severity"` // raw severity assigned on any hit
}

// SearchConfig parameterizes the external search backends.
// API keys are resolved from the environment, never stored in the file.
type SearchConfig struct {
	SerpAPIKeyEnv   string `yaml:"serpapi_key_env"`    // e.g. "SERPAPI_KEY"
	VisionAPIKeyEnv string `yaml:"vision_api_key_env"` // e.g. "VISION_API_KEY"
	SerpEndpoint    string `yaml:"serp_endpoint"`
	VisionEndpoint  string `yaml:"vision_endpoint"`
	Language        string `yaml:"language"` // hl parameter
	Country         string `yaml:"country"`  // gl parameter
	PageSize        int    `yaml:"page_size"`
	MaxPages        int    `yaml:"max_pages"`
	MaxResults      int    `yaml:"max_results"`
	MaxCandidates   int    `yaml:"max_candidates"` // scored image candidates per check
	SearchTimeoutS  int    `yaml:"search_timeout_s"`
	FetchTimeoutS   int    `yaml:"fetch_timeout_s"` // per candidate download
}

// EmbeddingConfig controls the visual-embedding adapter. When ModelDir is
// empty the adapter falls back to its heuristic distance bands.
type EmbeddingConfig struct {
	ModelDir         string  `yaml:"model_dir"`
	ImageSize        int     `yaml:"image_size"`
	BaseDistance     float64 `yaml:"base_distance"`
	PromptedDistance float64 `yaml:"prompted_distance"`
}

type ArchiveConfig struct {
	Sinks            []ArchiveSinkConfig `yaml:"sinks"`
	QueueSize        int                 `yaml:"queue_size"`
	Workers          int                 `yaml:"workers"`
	ShutdownTimeoutS int                 `yaml:"shutdown_timeout_s"`
}

type ArchiveSinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
	Version  string `yaml:"version"`
}

type DebugConfig struct {
	ExposeSearch bool `yaml:"expose_search"` // enables GET /debug/search
}

// Signal source names used in policy weights, evidence, and metric labels.
const (
	SourcePlagiarism = "plagiarism"
	SourceModeration = "moderation"
	SourceEmbedding  = "embedding"
	SourceWebSearch  = "web_search"
)

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 10
	}
	if cfg.Server.ReadTimeoutS <= 0 {
		cfg.Server.ReadTimeoutS = 60
	}

	if cfg.Policy.Version == "" {
		cfg.Policy.Version = "v1"
	}
	if cfg.Policy.Weights == nil {
		cfg.Policy.Weights = map[string]float64{
			SourcePlagiarism: 0.40,
			SourceModeration: 0.10,
			SourceEmbedding:  0.30,
		}
	}
	if cfg.Policy.BlockThreshold == 0 {
		cfg.Policy.BlockThreshold = 0.65
	}
	if cfg.Policy.ReviewThreshold == 0 {
		cfg.Policy.ReviewThreshold = 0.35
	}

	if cfg.Moderation.BannedTerms == nil {
		cfg.Moderation.BannedTerms = defaultBannedTerms()
	}
	if cfg.Moderation.Severity == 0 {
		cfg.Moderation.Severity = 0.8
	}

	if cfg.Search.SerpAPIKeyEnv == "" {
		cfg.Search.SerpAPIKeyEnv = "SERPAPI_KEY"
	}
	if cfg.Search.VisionAPIKeyEnv == "" {
		cfg.Search.VisionAPIKeyEnv = "VISION_API_KEY"
	}
	if cfg.Search.SerpEndpoint == "" {
		cfg.Search.SerpEndpoint = "https://serpapi.com/search.json"
	}
	if cfg.Search.VisionEndpoint == "" {
		cfg.Search.VisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"
	}
	if cfg.Search.Language == "" {
		cfg.Search.Language = "en"
	}
	if cfg.Search.Country == "" {
		cfg.Search.Country = "us"
	}
	if cfg.Search.PageSize <= 0 {
		cfg.Search.PageSize = 10
	}
	if cfg.Search.MaxPages <= 0 {
		cfg.Search.MaxPages = 5
	}
	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 20
	}
	if cfg.Search.MaxCandidates <= 0 {
		cfg.Search.MaxCandidates = 20
	}
	if cfg.Search.SearchTimeoutS <= 0 {
		cfg.Search.SearchTimeoutS = 30
	}
	if cfg.Search.FetchTimeoutS <= 0 {
		cfg.Search.FetchTimeoutS = 15
	}

	if cfg.Embedding.ImageSize <= 0 {
		cfg.Embedding.ImageSize = 224
	}
	if cfg.Embedding.BaseDistance == 0 {
		cfg.Embedding.BaseDistance = 0.30
	}
	if cfg.Embedding.PromptedDistance == 0 {
		cfg.Embedding.PromptedDistance = 0.45
	}

	if cfg.Archive.QueueSize <= 0 {
		cfg.Archive.QueueSize = 1000
	}
	if cfg.Archive.Workers <= 0 {
		cfg.Archive.Workers = 1
	}
	if cfg.Archive.ShutdownTimeoutS <= 0 {
		cfg.Archive.ShutdownTimeoutS = 2
	}

	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "origuard"
	}
}

func defaultBannedTerms() []string {
	return []string{
		"terror attack",
		"mass shooting",
		"child abuse",
		"snuff film",
		"ethnic cleansing",
		"bomb recipe",
	}
}
