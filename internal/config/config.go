package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultConfigPath = "/etc/error-english/config.ini"
	configPathEnv     = "ERROR_ENGLISH_CONFIG"
	homeEnv           = "ERROR_ENGLISH_HOME"

	defaultTTSEndpoint  = "https://api.aivis-project.com/v1/tts/synthesize"
	defaultTTSModelUUID = "a59cb814-0083-4369-8542-f51a29e72af7"
	defaultLLMBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultLLMModel     = "gemini-1.5-flash"
)

type Config struct {
	Hostname string
	AppEnv   string

	// BaseFolder is the Remotion project root; the other folders default below it.
	BaseFolder       string
	DataFolder       string
	OutputFolder     string
	PublicFolder     string
	PromptFile       string
	MigrationsFolder string

	RenderCommand     string
	RenderEntry       string
	RenderComposition string
	RenderFPS         int
	RenderTimeoutMS   int
	RenderConcurrency int
	LayoutFile        string
	KeepAudio         bool

	TTSEndpoint   string
	TTSAPIKey     string
	TTSModelUUID  string
	TTSStyleID    int
	TTSSpeed      float64
	TTSPitch      float64
	TTSIntonation float64

	YouTubeClientID       string
	YouTubeClientSecret   string
	YouTubeRefreshToken   string
	YouTubeCategoryID     string
	YouTubePrivacyStatus  string
	YouTubeUploadCaptions bool

	ThreadsAccessToken string
	ThreadsTokenFile   string
	ThreadsAPIBase     string

	InstagramAccountID    string
	InstagramAccessToken  string
	InstagramAPIBase      string
	InstagramVideoBaseURL string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	ReplenishThreshold   int
	DailyPublishSchedule string
	TokenRefreshSchedule string

	DBURL      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RabbitMQURLOverride string
	RabbitMQHost        string
	RabbitMQPort        int
	RabbitMQUser        string
	RabbitMQPassword    string
	RabbitMQVHost       string
}

// Load reads .env (if present) and the INI file named by ERROR_ENGLISH_CONFIG
// or the default path. A missing INI file is not an error; env variables and
// defaults fill in.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	configPath := os.Getenv(configPathEnv)
	if configPath == "" {
		configPath = defaultConfigPath
	}
	return LoadFrom(configPath)
}

func LoadFrom(configPath string) (Config, error) {
	ini, err := readINI(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load config %s: %w", configPath, err)
		}
		ini = iniData{sections: map[string]map[string]string{}}
	}

	cfg := Config{}
	cfg.Hostname = ini.get("app", "hostname")
	if cfg.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Hostname = host
		}
	}
	cfg.AppEnv = ini.getDefault("app", "env", "production")

	cfg.BaseFolder = firstNonEmpty(ini.get("app", "base_folder"), os.Getenv(homeEnv))
	if cfg.BaseFolder == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("resolve base folder: %w", err)
		}
		cfg.BaseFolder = wd
	}
	cfg.DataFolder = ini.getDefault("app", "data_folder", filepath.Join(cfg.BaseFolder, "data"))
	cfg.OutputFolder = ini.getDefault("app", "output_folder", filepath.Join(cfg.BaseFolder, "out"))
	cfg.PublicFolder = ini.getDefault("app", "public_folder", filepath.Join(cfg.BaseFolder, "public"))
	cfg.PromptFile = ini.getDefault("app", "prompt_file", filepath.Join(cfg.BaseFolder, "prompts", "generate-error-data.md"))
	cfg.MigrationsFolder = ini.getDefault("app", "migrations_folder", filepath.Join(cfg.BaseFolder, "migrations"))

	cfg.RenderCommand = ini.getDefault("render", "command", "npx remotion")
	cfg.RenderEntry = ini.getDefault("render", "entry", "src/index.ts")
	cfg.RenderComposition = ini.getDefault("render", "composition", "ErrorEnglishVideo")
	cfg.RenderFPS = ini.getIntDefault("render", "fps", 30)
	cfg.RenderTimeoutMS = ini.getIntDefault("render", "timeout_ms", 240000)
	cfg.RenderConcurrency = ini.getIntDefault("render", "concurrency", 1)
	cfg.LayoutFile = ini.get("render", "layout_file")
	cfg.KeepAudio = ini.getBoolDefault("render", "keep_audio", false)

	cfg.TTSEndpoint = ini.getDefault("tts", "endpoint", defaultTTSEndpoint)
	cfg.TTSAPIKey = firstNonEmpty(ini.get("tts", "api_key"), os.Getenv("AIVIS_API_KEY"))
	cfg.TTSModelUUID = ini.getDefault("tts", "model_uuid", defaultTTSModelUUID)
	cfg.TTSStyleID = ini.getIntDefault("tts", "style_id", 0)
	cfg.TTSSpeed = ini.getFloatDefault("tts", "speed", 1.0)
	cfg.TTSPitch = ini.getFloatDefault("tts", "pitch", 0.0)
	cfg.TTSIntonation = ini.getFloatDefault("tts", "intonation", 1.0)

	cfg.YouTubeClientID = firstNonEmpty(ini.get("youtube", "client_id"), os.Getenv("YOUTUBE_CLIENT_ID"))
	cfg.YouTubeClientSecret = firstNonEmpty(ini.get("youtube", "client_secret"), os.Getenv("YOUTUBE_CLIENT_SECRET"))
	cfg.YouTubeRefreshToken = firstNonEmpty(ini.get("youtube", "refresh_token"), os.Getenv("YOUTUBE_REFRESH_TOKEN"))
	// 28 = Science & Technology.
	cfg.YouTubeCategoryID = ini.getDefault("youtube", "category_id", "28")
	cfg.YouTubePrivacyStatus = ini.getDefault("youtube", "privacy_status", "public")
	cfg.YouTubeUploadCaptions = ini.getBoolDefault("youtube", "upload_captions", false)

	cfg.ThreadsAccessToken = firstNonEmpty(ini.get("threads", "access_token"), os.Getenv("THREADS_ACCESS_TOKEN"))
	cfg.ThreadsTokenFile = ini.getDefault("threads", "token_file", filepath.Join(cfg.DataFolder, "threads-token.json"))
	cfg.ThreadsAPIBase = ini.getDefault("threads", "api_base", "https://graph.threads.net")

	cfg.InstagramAccountID = firstNonEmpty(ini.get("instagram", "account_id"), os.Getenv("INSTAGRAM_ACCOUNT_ID"))
	cfg.InstagramAccessToken = firstNonEmpty(ini.get("instagram", "access_token"), os.Getenv("INSTAGRAM_ACCESS_TOKEN"))
	cfg.InstagramAPIBase = ini.getDefault("instagram", "api_base", "https://graph.facebook.com/v19.0")
	cfg.InstagramVideoBaseURL = firstNonEmpty(ini.get("instagram", "video_base_url"), os.Getenv("INSTAGRAM_VIDEO_BASE_URL"))

	cfg.LLMAPIKey = firstNonEmpty(ini.get("llm", "api_key"), os.Getenv("GEMINI_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	cfg.LLMBaseURL = ini.getDefault("llm", "base_url", defaultLLMBaseURL)
	cfg.LLMModel = ini.getDefault("llm", "model", defaultLLMModel)

	cfg.ReplenishThreshold = ini.getIntDefault("queue", "replenish_threshold", 10)
	cfg.DailyPublishSchedule = ini.getDefault("schedule", "daily_publish", "0 9 * * *")
	cfg.TokenRefreshSchedule = ini.getDefault("schedule", "threads_token_refresh", "0 3 * * 1")

	cfg.DBURL = firstNonEmpty(ini.get("db", "url"), os.Getenv("DATABASE_URL"))
	cfg.DBHost = ini.get("db", "host")
	cfg.DBPort = ini.getIntDefault("db", "port", 5432)
	cfg.DBName = ini.getDefault("db", "name", "error_english")
	cfg.DBUser = ini.getDefault("db", "user", "postgres")
	cfg.DBPassword = ini.get("db", "password")
	cfg.DBSSLMode = ini.getDefault("db", "sslmode", "prefer")

	cfg.RabbitMQURLOverride = firstNonEmpty(ini.get("rabbitmq", "url"), os.Getenv("RABBITMQ_URL"))
	cfg.RabbitMQHost = ini.get("rabbitmq", "host")
	cfg.RabbitMQPort = ini.getIntDefault("rabbitmq", "port", 5672)
	cfg.RabbitMQUser = ini.getDefault("rabbitmq", "user", "guest")
	cfg.RabbitMQPassword = ini.getDefault("rabbitmq", "password", "guest")
	cfg.RabbitMQVHost = ini.getDefault("rabbitmq", "vhost", "/")

	if cfg.RenderFPS <= 0 {
		return cfg, fmt.Errorf("render.fps must be positive, got %d", cfg.RenderFPS)
	}
	return cfg, nil
}

func (c Config) QueueFile() string   { return filepath.Join(c.DataFolder, "errors.json") }
func (c Config) HistoryFile() string { return filepath.Join(c.DataFolder, "history.json") }
func (c Config) AudioFolder() string { return filepath.Join(c.PublicFolder, "audio") }
func (c Config) EffectsFolder() string {
	return filepath.Join(c.PublicFolder, "se")
}

// DBEnabled reports whether a publication ledger is configured.
func (c Config) DBEnabled() bool { return c.DBURL != "" || c.DBHost != "" }

func (c Config) DBConnString() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBUser,
		c.DBPassword,
		c.DBSSLMode,
	)
}

// RabbitMQEnabled reports whether queue mode and publish events are available.
func (c Config) RabbitMQEnabled() bool { return c.RabbitMQURLOverride != "" || c.RabbitMQHost != "" }

func (c Config) RabbitMQURL() string {
	if c.RabbitMQURLOverride != "" {
		return c.RabbitMQURLOverride
	}
	vhost := strings.TrimPrefix(c.RabbitMQVHost, "/")
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d/%s",
		c.RabbitMQUser,
		c.RabbitMQPassword,
		c.RabbitMQHost,
		c.RabbitMQPort,
		vhost,
	)
}

type iniData struct {
	sections map[string]map[string]string
}

func readINI(path string) (iniData, error) {
	file, err := os.Open(path)
	if err != nil {
		return iniData{}, err
	}
	defer file.Close()

	data := iniData{sections: map[string]map[string]string{}}
	section := "default"
	data.sections[section] = map[string]string{}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if section == "" {
				return iniData{}, fmt.Errorf("invalid section header at line %d", lineNo)
			}
			if _, ok := data.sections[section]; !ok {
				data.sections[section] = map[string]string{}
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return iniData{}, fmt.Errorf("invalid line %d: %q", lineNo, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return iniData{}, fmt.Errorf("empty key at line %d", lineNo)
		}
		data.sections[section][key] = trimQuotes(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return iniData{}, err
	}
	return data, nil
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	if value[0] == '\'' && value[len(value)-1] == '\'' {
		return value[1 : len(value)-1]
	}
	return value
}

func (ini iniData) get(section, key string) string {
	if len(ini.sections) == 0 {
		return ""
	}
	section = strings.ToLower(section)
	if section == "" {
		section = "default"
	}
	if values, ok := ini.sections[section]; ok {
		return values[strings.ToLower(key)]
	}
	return ""
}

func (ini iniData) getDefault(section, key, fallback string) string {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	return value
}

func (ini iniData) getIntDefault(section, key string, fallback int) int {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (ini iniData) getFloatDefault(section, key string, fallback float64) float64 {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (ini iniData) getBoolDefault(section, key string, fallback bool) bool {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
