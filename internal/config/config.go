// Package config loads the harvester configuration from defaults, an
// optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"karriere-harvester/internal/logger"
)

// Config is the full harvester configuration.
type Config struct {
	Browser BrowserConfig `mapstructure:"browser"`
	Access  AccessConfig  `mapstructure:"access"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Site    SiteConfig    `mapstructure:"site"`
	Export  ExportConfig  `mapstructure:"export"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	API     APIConfig     `mapstructure:"api"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Graph   GraphConfig   `mapstructure:"graph_writer"`
	Logger  logger.Config `mapstructure:"logger"`
}

// BrowserConfig configures the automation session.
type BrowserConfig struct {
	ExecPath  string `mapstructure:"exec_path"`
	Headless  bool   `mapstructure:"headless"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	UserAgent string `mapstructure:"user_agent"`
}

// AccessConfig bounds every wait and retry of the element access layer.
type AccessConfig struct {
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`
}

// CrawlConfig configures one harvest run.
type CrawlConfig struct {
	Limit         int           `mapstructure:"limit"`
	AutoExport    bool          `mapstructure:"auto_export"`
	UseProxy      bool          `mapstructure:"use_proxy"`
	ConsentWait   time.Duration `mapstructure:"consent_wait"`
	ConsentSettle time.Duration `mapstructure:"consent_settle"`
	LoadMoreWait  time.Duration `mapstructure:"load_more_wait"`
	OverlayWait   time.Duration `mapstructure:"overlay_wait"`
	SnapshotDir   string        `mapstructure:"snapshot_dir"`
	// RatePerSecond paces navigations and load-more clicks; 0 disables.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	RespectRobots bool    `mapstructure:"respect_robots"`
}

// SiteConfig points the crawl at the listing site. Selectors override the
// built-in locators by name, each written "strategy=value".
type SiteConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	Selectors map[string]string `mapstructure:"selectors"`
}

// ExportConfig selects where and how records are exported.
type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// ProxyConfig lists the egress proxy sources, tried in order: URL, Pool,
// ListURL.
type ProxyConfig struct {
	URL        string        `mapstructure:"url"`
	Pool       string        `mapstructure:"pool"`
	ListURL    string        `mapstructure:"list_url"`
	ListScheme string        `mapstructure:"list_scheme"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// KafkaConfig names the broker and topics.
type KafkaConfig struct {
	Broker        string `mapstructure:"broker"`
	RequestsTopic string `mapstructure:"requests_topic"`
	ResultsTopic  string `mapstructure:"results_topic"`
	EdgesTopic    string `mapstructure:"edges_topic"`
	DLQTopic      string `mapstructure:"dlq_topic"`
	GroupID       string `mapstructure:"group_id"`
	// ResultsGroup and EdgesGroup are the graph writer's consumer groups.
	ResultsGroup string `mapstructure:"results_group"`
	EdgesGroup   string `mapstructure:"edges_group"`
}

// RedisConfig configures run status and request dedupe.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	StatusTTL time.Duration `mapstructure:"status_ttl"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl"`
}

// Neo4jConfig configures the graph writer.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// SQLiteConfig configures the record archive; an empty path disables it.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// APIConfig configures the HTTP submission service.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// WorkerConfig configures the crawl worker process.
type WorkerConfig struct {
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// GraphConfig configures the graph writer process.
type GraphConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1920)
	v.SetDefault("browser.height", 1080)

	v.SetDefault("access.wait_timeout", 10*time.Second)
	v.SetDefault("access.poll_interval", 250*time.Millisecond)
	v.SetDefault("access.retry_attempts", 3)
	v.SetDefault("access.retry_delay", 200*time.Millisecond)
	v.SetDefault("access.retry_max_delay", 2*time.Second)

	v.SetDefault("crawl.limit", 9999)
	v.SetDefault("crawl.auto_export", true)
	v.SetDefault("crawl.use_proxy", false)
	v.SetDefault("crawl.consent_wait", 10*time.Second)
	v.SetDefault("crawl.consent_settle", 2*time.Second)
	v.SetDefault("crawl.load_more_wait", 5*time.Second)
	v.SetDefault("crawl.overlay_wait", 10*time.Second)
	v.SetDefault("crawl.snapshot_dir", ".")
	v.SetDefault("crawl.rate_per_second", 0)
	v.SetDefault("crawl.burst", 1)
	v.SetDefault("crawl.respect_robots", false)

	v.SetDefault("site.base_url", "https://www.karriere.at/jobs")

	v.SetDefault("export.dir", ".")
	v.SetDefault("export.format", "csv")

	v.SetDefault("proxy.list_scheme", "http")
	v.SetDefault("proxy.timeout", 10*time.Second)

	v.SetDefault("kafka.broker", "localhost:9092")
	v.SetDefault("kafka.requests_topic", "karriere.crawl.requests")
	v.SetDefault("kafka.results_topic", "karriere.crawl.results")
	v.SetDefault("kafka.edges_topic", "karriere.graph.edges")
	v.SetDefault("kafka.dlq_topic", "karriere.crawl.dlq")
	v.SetDefault("kafka.group_id", "karriere-worker")
	v.SetDefault("kafka.results_group", "karriere-graph-results")
	v.SetDefault("kafka.edges_group", "karriere-graph-edges")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.status_ttl", 24*time.Hour)
	v.SetDefault("redis.dedupe_ttl", 24*time.Hour)

	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "neo4j")

	v.SetDefault("sqlite.path", "")

	v.SetDefault("api.addr", ":8080")
	v.SetDefault("worker.job_timeout", 30*time.Minute)
	v.SetDefault("worker.metrics_addr", ":9090")
	v.SetDefault("graph_writer.metrics_addr", ":9091")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)
}

// Load reads the configuration. path names a YAML file; when empty,
// config.yaml is looked up in . and ./config and skipped if missing. A .env
// file in the working directory is loaded first without overriding the
// environment. Environment variables override everything, with "." in keys
// replaced by "_" (CRAWL_LIMIT, KAFKA_BROKER, REDIS_DEDUPE_TTL, ...).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Browser.Width <= 0 || c.Browser.Height <= 0:
		return fmt.Errorf("config: browser viewport must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	case c.Access.WaitTimeout <= 0:
		return errors.New("config: access.wait_timeout must be positive")
	case c.Access.PollInterval <= 0:
		return errors.New("config: access.poll_interval must be positive")
	case c.Access.RetryAttempts < 1:
		return errors.New("config: access.retry_attempts must be at least 1")
	case c.Crawl.Limit < 0:
		return errors.New("config: crawl.limit must not be negative")
	case c.Worker.JobTimeout <= 0:
		return errors.New("config: worker.job_timeout must be positive")
	case c.Crawl.RatePerSecond < 0:
		return errors.New("config: crawl.rate_per_second must not be negative")
	case strings.TrimSpace(c.Site.BaseURL) == "":
		return errors.New("config: site.base_url is required")
	}
	if _, err := c.Selectors(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
