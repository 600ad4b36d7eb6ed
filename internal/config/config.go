// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig       `toml:"app"`
	Logger    LoggerConfig    `toml:"logger"`
	Storage   StorageConfig   `toml:"storage"`
	Server    ServerConfig    `toml:"server"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	EPUB      EPUBConfig      `toml:"epub"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `toml:"environment"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `toml:"level"`
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	// MediaPath is the root of per-book storage; books live at {MediaPath}/books/{id}.
	MediaPath string `toml:"media_path"`
	// DatabasePath is the SQLite file (default: {MediaPath}/ingest.db).
	DatabasePath string `toml:"database_path"`
	// InboxPath is an optional drop folder watched for new submissions.
	InboxPath string `toml:"inbox_path"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        `toml:"port"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	IdleTimeout    time.Duration `toml:"idle_timeout"`
	MaxUploadBytes int64         `toml:"max_upload_bytes"`
	CORSOrigins    []string      `toml:"cors_origins"`
}

// SynthesisConfig holds text-to-speech and merge settings.
type SynthesisConfig struct {
	Voice             string        `toml:"voice"`
	MaxChapterMinutes float64       `toml:"max_chapter_minutes"`
	SegmentGap        time.Duration `toml:"segment_gap"`
	SegmentDelay      time.Duration `toml:"segment_delay"`
	ChapterDelay      time.Duration `toml:"chapter_delay"`
	EdgeTTSPath       string        `toml:"edge_tts_path"`
	FFmpegPath        string        `toml:"ffmpeg_path"`
	Bitrate           string        `toml:"bitrate"`
	MergeTimeout      time.Duration `toml:"merge_timeout"`
	MaxConcurrentJobs int           `toml:"max_concurrent_jobs"`
	// EngineRPS caps calls to the synthesis engine per voice across all jobs.
	EngineRPS float64 `toml:"engine_rps"`
}

// EPUBConfig holds EPUB ingestion settings.
type EPUBConfig struct {
	// StrictPairing rejects bundles whose alignment count differs from the
	// number of content chapters instead of pairing up to the shorter list.
	StrictPairing bool `toml:"strict_pairing"`
}

// Default returns the configuration used when nothing is overridden.
// Paths are left empty; LoadConfig and LoadFile expand them.
func Default() Config {
	return Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   5 * time.Minute,
			IdleTimeout:    60 * time.Second,
			MaxUploadBytes: 2 << 30,
		},
		Synthesis: SynthesisConfig{
			Voice:             "zh-CN-YunyangNeural",
			MaxChapterMinutes: 8.0,
			SegmentGap:        time.Second,
			SegmentDelay:      500 * time.Millisecond,
			ChapterDelay:      time.Second,
			Bitrate:           "128k",
			MergeTimeout:      300 * time.Second,
			MaxConcurrentJobs: 1,
			EngineRPS:         2,
		},
	}
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	mediaPath := flag.String("media-path", "", "Root directory for book storage")
	databasePath := flag.String("database-path", "", "SQLite database file")
	inboxPath := flag.String("inbox-path", "", "Drop folder watched for new submissions")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 5m)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	maxUpload := flag.String("max-upload-bytes", "", "Maximum upload size in bytes")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins")

	voice := flag.String("voice", "", "Synthesis voice (default: zh-CN-YunyangNeural)")
	maxMinutes := flag.String("max-chapter-minutes", "", "Per-chapter duration ceiling in minutes (default: 8)")
	segmentGap := flag.String("segment-gap", "", "Silence between merged sub-segments (default: 1s)")
	segmentDelay := flag.String("segment-delay", "", "Pause between sub-segment synthesis calls (default: 500ms)")
	chapterDelay := flag.String("chapter-delay", "", "Pause between chapters (default: 1s)")
	edgeTTSPath := flag.String("edge-tts-path", "", "Path to edge-tts binary (default: auto-detect)")
	ffmpegPath := flag.String("ffmpeg-path", "", "Path to ffmpeg binary (default: auto-detect)")
	mergeTimeout := flag.String("merge-timeout", "", "Timeout for one ffmpeg merge (default: 300s)")
	maxJobs := flag.String("max-concurrent-jobs", "", "Concurrent synthesis jobs (default: 1)")
	strictPairing := flag.String("epub-strict-pairing", "", "Reject EPUB bundles with mismatched alignment counts")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	_ = loadEnvFile(*envFile)

	def := Default()
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", def.App.Environment),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", def.Logger.Level),
		},
		Storage: StorageConfig{
			MediaPath:    getConfigValue(*mediaPath, "MEDIA_PATH", ""),
			DatabasePath: getConfigValue(*databasePath, "DATABASE_PATH", ""),
			InboxPath:    getConfigValue(*inboxPath, "INBOX_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", def.Server.Port),
			MaxUploadBytes: getInt64ConfigValue(*maxUpload, "MAX_UPLOAD_BYTES", def.Server.MaxUploadBytes),
			CORSOrigins:    splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "")),
		},
		Synthesis: SynthesisConfig{
			Voice:             getConfigValue(*voice, "SYNTHESIS_VOICE", def.Synthesis.Voice),
			MaxChapterMinutes: getFloatConfigValue(*maxMinutes, "MAX_CHAPTER_MINUTES", def.Synthesis.MaxChapterMinutes),
			EdgeTTSPath:       getConfigValue(*edgeTTSPath, "EDGE_TTS_PATH", ""),
			FFmpegPath:        getConfigValue(*ffmpegPath, "FFMPEG_PATH", ""),
			Bitrate:           getConfigValue("", "SYNTHESIS_BITRATE", def.Synthesis.Bitrate),
			MaxConcurrentJobs: getIntConfigValue(*maxJobs, "MAX_CONCURRENT_JOBS", def.Synthesis.MaxConcurrentJobs),
			EngineRPS:         getFloatConfigValue("", "SYNTHESIS_ENGINE_RPS", def.Synthesis.EngineRPS),
		},
		EPUB: EPUBConfig{
			StrictPairing: getBoolConfigValue(*strictPairing, "EPUB_STRICT_PAIRING", false),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		fallback  time.Duration
		target    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", def.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", def.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", def.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{*segmentGap, "SEGMENT_GAP", def.Synthesis.SegmentGap, &cfg.Synthesis.SegmentGap},
		{*segmentDelay, "SEGMENT_DELAY", def.Synthesis.SegmentDelay, &cfg.Synthesis.SegmentDelay},
		{*chapterDelay, "CHAPTER_DELAY", def.Synthesis.ChapterDelay, &cfg.Synthesis.ChapterDelay},
		{*mergeTimeout, "MERGE_TIMEOUT", def.Synthesis.MergeTimeout, &cfg.Synthesis.MergeTimeout},
	}
	for _, d := range durations {
		parsed, err := getDurationConfigValue(d.flagValue, d.envKey, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.MediaPath == "" {
		return errors.New("media path cannot be empty after expansion")
	}

	if c.Synthesis.MaxChapterMinutes <= 0 {
		return fmt.Errorf("max chapter minutes must be positive, got %v", c.Synthesis.MaxChapterMinutes)
	}
	if c.Synthesis.SegmentGap < 0 || c.Synthesis.SegmentDelay < 0 || c.Synthesis.ChapterDelay < 0 {
		return errors.New("synthesis gap and delays cannot be negative")
	}
	if c.Synthesis.MergeTimeout <= 0 {
		return errors.New("merge timeout must be positive")
	}
	if c.Synthesis.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max concurrent jobs must be at least 1, got %d", c.Synthesis.MaxConcurrentJobs)
	}
	if c.Synthesis.Voice == "" {
		return errors.New("synthesis voice cannot be empty")
	}

	return nil
}

// BooksPath returns the directory that holds one subdirectory per book.
func (c *Config) BooksPath() string {
	return filepath.Join(c.Storage.MediaPath, "books")
}

// expandPaths expands ~ in every path setting and fills derived defaults.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	media, err := expandPath(c.Storage.MediaPath, filepath.Join(homeDir, "ListenUp", "ingest"))
	if err != nil {
		return fmt.Errorf("invalid media path: %w", err)
	}
	c.Storage.MediaPath = media

	db, err := expandPath(c.Storage.DatabasePath, filepath.Join(media, "ingest.db"))
	if err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}
	c.Storage.DatabasePath = db

	// Inbox stays disabled when unset.
	if c.Storage.InboxPath != "" {
		inbox, err := expandPath(c.Storage.InboxPath, "")
		if err != nil {
			return fmt.Errorf("invalid inbox path: %w", err)
		}
		c.Storage.InboxPath = inbox
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envKey != "" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
	}

	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getInt64ConfigValue returns an int64 from flag, env var, or default.
func getInt64ConfigValue(flagValue, envKey string, defaultValue int64) int64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
// Unlike the other getters an unparsable value is an error.
func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

// fileConfig mirrors Config for TOML decoding. Durations are written as
// Go duration strings ("500ms", "5m") so they stay readable in the file.
type fileConfig struct {
	App     AppConfig     `toml:"app"`
	Logger  LoggerConfig  `toml:"logger"`
	Storage StorageConfig `toml:"storage"`
	Server  struct {
		Port           string   `toml:"port"`
		ReadTimeout    string   `toml:"read_timeout"`
		WriteTimeout   string   `toml:"write_timeout"`
		IdleTimeout    string   `toml:"idle_timeout"`
		MaxUploadBytes int64    `toml:"max_upload_bytes"`
		CORSOrigins    []string `toml:"cors_origins"`
	} `toml:"server"`
	Synthesis struct {
		Voice             string  `toml:"voice"`
		MaxChapterMinutes float64 `toml:"max_chapter_minutes"`
		SegmentGap        string  `toml:"segment_gap"`
		SegmentDelay      string  `toml:"segment_delay"`
		ChapterDelay      string  `toml:"chapter_delay"`
		EdgeTTSPath       string  `toml:"edge_tts_path"`
		FFmpegPath        string  `toml:"ffmpeg_path"`
		Bitrate           string  `toml:"bitrate"`
		MergeTimeout      string  `toml:"merge_timeout"`
		MaxConcurrentJobs int     `toml:"max_concurrent_jobs"`
		EngineRPS         float64 `toml:"engine_rps"`
	} `toml:"synthesis"`
	EPUB EPUBConfig `toml:"epub"`
}

// LoadFile reads a TOML configuration file on top of Default. Unset keys keep
// their defaults. Paths are expanded and the result validated.
func LoadFile(path string) (*Config, error) {
	expanded, err := expandPath(path, "")
	if err != nil {
		return nil, err
	}

	file, err := os.Open(expanded) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	if err := toml.NewDecoder(file).Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if fc.App.Environment != "" {
		cfg.App.Environment = fc.App.Environment
	}
	if fc.Logger.Level != "" {
		cfg.Logger.Level = fc.Logger.Level
	}
	cfg.Storage = fc.Storage
	cfg.EPUB = fc.EPUB

	if fc.Server.Port != "" {
		cfg.Server.Port = fc.Server.Port
	}
	if fc.Server.MaxUploadBytes > 0 {
		cfg.Server.MaxUploadBytes = fc.Server.MaxUploadBytes
	}
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = fc.Server.CORSOrigins
	}

	s := fc.Synthesis
	if s.Voice != "" {
		cfg.Synthesis.Voice = s.Voice
	}
	if s.MaxChapterMinutes != 0 {
		cfg.Synthesis.MaxChapterMinutes = s.MaxChapterMinutes
	}
	if s.Bitrate != "" {
		cfg.Synthesis.Bitrate = s.Bitrate
	}
	if s.MaxConcurrentJobs != 0 {
		cfg.Synthesis.MaxConcurrentJobs = s.MaxConcurrentJobs
	}
	if s.EngineRPS != 0 {
		cfg.Synthesis.EngineRPS = s.EngineRPS
	}
	cfg.Synthesis.EdgeTTSPath = s.EdgeTTSPath
	cfg.Synthesis.FFmpegPath = s.FFmpegPath

	durations := []struct {
		key    string
		value  string
		target *time.Duration
	}{
		{"server.read_timeout", fc.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{"server.write_timeout", fc.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{"server.idle_timeout", fc.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{"synthesis.segment_gap", s.SegmentGap, &cfg.Synthesis.SegmentGap},
		{"synthesis.segment_delay", s.SegmentDelay, &cfg.Synthesis.SegmentDelay},
		{"synthesis.chapter_delay", s.ChapterDelay, &cfg.Synthesis.ChapterDelay},
		{"synthesis.merge_timeout", s.MergeTimeout, &cfg.Synthesis.MergeTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, d.value, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
