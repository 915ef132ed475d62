package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Cache        CacheConfig
	Wikipedia    WikipediaConfig
	InternalDocs InternalDocsConfig
	Connectors   []ConnectorConfig
	LLM          LLMConfig
	Summary      SummaryConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	KnowledgeTTLSec int
	DocsTTLSec      int
	KeyQueryLimit   int
}

type WikipediaConfig struct {
	BaseURL    string
	Language   string
	TimeoutSec int
	UserAgent  string
}

type InternalDocsConfig struct {
	MaxResults int
	WebSources []WebSourceConfig
	JSONSource JSONSourceConfig
}

type WebSourceConfig struct {
	Name     string
	IndexURL string
}

type JSONSourceConfig struct {
	Name string
	URL  string
}

type ConnectorConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	TimeoutSec int
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type SummaryConfig struct {
	ScheduleEnabled bool
	Weekday         int
	Hour            int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/voice-tutor")

	viper.SetEnvPrefix("VOICE_TUTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/voicetutor.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("cache.knowledgeTTLSec", 3600)
	viper.SetDefault("cache.docsTTLSec", 900)
	viper.SetDefault("cache.keyQueryLimit", 100)

	viper.SetDefault("wikipedia.baseURL", "https://en.wikipedia.org/api/rest_v1")
	viper.SetDefault("wikipedia.language", "en")
	viper.SetDefault("wikipedia.timeoutSec", 2)
	viper.SetDefault("wikipedia.userAgent", "voice-tutor/1.0")

	viper.SetDefault("internalDocs.maxResults", 10)

	viper.SetDefault("llm.baseURL", "http://localhost:11434/v1")
	viper.SetDefault("llm.apiKey", "ollama")
	viper.SetDefault("llm.model", "llama2")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("summary.scheduleEnabled", true)
	viper.SetDefault("summary.weekday", 1)
	viper.SetDefault("summary.hour", 6)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
