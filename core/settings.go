package core

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is the settings file read when no path is given.
// JSON is accepted as well since every JSON document is valid YAML.
const DefaultSettingsFile = "ideogram-settings.yaml"

// AnnotatedSubfolder is the folder under ImageDownloadFolder that receives
// annotated copies of generated images.
const AnnotatedSubfolder = "annotated"

// S3Settings configures the optional object storage mirror for artifacts.
type S3Settings struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether enough S3 settings are present to build a mirror.
func (s S3Settings) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Settings holds everything a batch run reads from the outside world:
// credentials, folder locations and feature toggles.
//
// Settings are loaded once per process and treated as an immutable value
// afterwards. Nothing downstream mutates them.
type Settings struct {
	// API keys
	IdeogramAPIKey string `yaml:"ideogram_api_key"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	GeminiAPIKey   string `yaml:"gemini_api_key"`

	// Endpoints
	IdeogramBaseURL string `yaml:"ideogram_base_url"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	RewriteModel    string `yaml:"rewrite_model"`
	GeminiModel     string `yaml:"gemini_model"`

	// Inputs and outputs
	LoadPromptsFrom     string `yaml:"load_prompts_from"`
	ImageDownloadFolder string `yaml:"image_download_folder"`
	LogFilePath         string `yaml:"log_file_path"`
	HistoryDBPath       string `yaml:"history_db_path"`

	// HistoryRetention prunes history rows older than this at startup.
	// Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention"`

	// Feature toggles
	EnableLogging      bool `yaml:"enable_logging"`
	SaveJSONLog        bool `yaml:"save_json_log"`
	SaveRawImage       bool `yaml:"save_raw_image"`
	SaveAnnotatedImage bool `yaml:"save_annotated_image"`
	RewritePrompts     bool `yaml:"rewrite_prompts"`

	// Processing
	MaxConcurrent        int           `yaml:"max_concurrent"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	AllowSelfSignedCerts bool          `yaml:"allow_self_signed_certs"`

	S3 S3Settings `yaml:"s3"`
}

// DefaultSettings returns the settings used when neither the file nor the
// environment provide a value. 5 concurrent requests stays inside the
// image service's rate limit.
func DefaultSettings() Settings {
	return Settings{
		IdeogramBaseURL:     "https://api.ideogram.ai",
		OpenAIBaseURL:       "https://api.openai.com/v1",
		RewriteModel:        "gpt-4o-mini",
		GeminiModel:         "gemini-2.5-flash",
		LoadPromptsFrom:     "prompts.txt",
		ImageDownloadFolder: "./images",
		LogFilePath:         "./logs/ideogram-requests.log",
		SaveRawImage:        true,
		SaveAnnotatedImage:  true,
		SaveJSONLog:         true,
		MaxConcurrent:       5,
		RequestTimeout:      120 * time.Second,
	}
}

// LoadSettings reads settings from path, applies environment overrides and
// validates the result. A missing file is not an error when path is the
// default file name; the defaults plus environment are used instead.
//
// Example:
//
//	settings, err := LoadSettings("ideogram-settings.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	if path == "" {
		path = DefaultSettingsFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, ErrInvalidSettingsFile(path, err.Error())
		}
	case errors.Is(err, os.ErrNotExist):
		if path != DefaultSettingsFile {
			return nil, ErrSettingsFileMissing(path)
		}
	default:
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	settings.applyEnv()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// applyEnv overrides file values with any environment variables that are set.
func (s *Settings) applyEnv() {
	s.IdeogramAPIKey = GetEnvOrDefault("IDEOGRAM_API_KEY", s.IdeogramAPIKey)
	s.OpenAIAPIKey = GetEnvOrDefault("OPENAI_API_KEY", s.OpenAIAPIKey)
	s.GeminiAPIKey = GetEnvOrDefault("GEMINI_API_KEY", s.GeminiAPIKey)

	s.IdeogramBaseURL = GetEnvOrDefault("IDEOGRAM_BASE_URL", s.IdeogramBaseURL)
	s.OpenAIBaseURL = GetEnvOrDefault("OPENAI_BASE_URL", s.OpenAIBaseURL)
	s.RewriteModel = GetEnvOrDefault("REWRITE_MODEL", s.RewriteModel)
	s.GeminiModel = GetEnvOrDefault("GEMINI_MODEL", s.GeminiModel)

	s.LoadPromptsFrom = GetEnvOrDefault("LOAD_PROMPTS_FROM", s.LoadPromptsFrom)
	s.ImageDownloadFolder = GetEnvOrDefault("IMAGE_DOWNLOAD_FOLDER", s.ImageDownloadFolder)
	s.LogFilePath = GetEnvOrDefault("LOG_FILE_PATH", s.LogFilePath)
	s.HistoryDBPath = GetEnvOrDefault("HISTORY_DB_PATH", s.HistoryDBPath)
	s.HistoryRetention = ParseDurationEnv("HISTORY_RETENTION", s.HistoryRetention)

	s.EnableLogging = ParseBoolEnv("ENABLE_LOGGING", s.EnableLogging)
	s.SaveJSONLog = ParseBoolEnv("SAVE_JSON_LOG", s.SaveJSONLog)
	s.SaveRawImage = ParseBoolEnv("SAVE_RAW_IMAGE", s.SaveRawImage)
	s.SaveAnnotatedImage = ParseBoolEnv("SAVE_ANNOTATED_IMAGE", s.SaveAnnotatedImage)
	s.RewritePrompts = ParseBoolEnv("REWRITE_PROMPTS", s.RewritePrompts)

	s.MaxConcurrent = ParseIntEnv("MAX_CONCURRENT", s.MaxConcurrent)
	s.RequestTimeout = ParseDurationEnv("REQUEST_TIMEOUT", s.RequestTimeout)
	s.AllowSelfSignedCerts = ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", s.AllowSelfSignedCerts)

	s.S3.Endpoint = GetEnvOrDefault("S3_ENDPOINT", s.S3.Endpoint)
	s.S3.Region = GetEnvOrDefault("S3_REGION", s.S3.Region)
	s.S3.AccessKey = GetEnvOrDefault("S3_ACCESS_KEY", s.S3.AccessKey)
	s.S3.SecretKey = GetEnvOrDefault("S3_SECRET_KEY", s.S3.SecretKey)
	s.S3.Bucket = GetEnvOrDefault("S3_BUCKET", s.S3.Bucket)
	s.S3.Prefix = GetEnvOrDefault("S3_PREFIX", s.S3.Prefix)
	s.S3.UseSSL = ParseBoolEnv("S3_USE_SSL", s.S3.UseSSL)
}

// Validate checks required values and creates the folders the run writes
// into (image folder, annotated subfolder and the request log directory).
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.IdeogramAPIKey) == "" {
		return ErrMissingAuth("ideogram")
	}
	if strings.TrimSpace(s.LogFilePath) == "" {
		return ErrMissingConfig("LOG_FILE_PATH")
	}
	if strings.TrimSpace(s.ImageDownloadFolder) == "" {
		return ErrMissingConfig("IMAGE_DOWNLOAD_FOLDER")
	}
	if s.MaxConcurrent < 1 || s.MaxConcurrent > 64 {
		return ErrInvalidValue("MAX_CONCURRENT", fmt.Sprintf("%d", s.MaxConcurrent), "must be between 1 and 64")
	}
	if s.RewritePrompts && s.OpenAIAPIKey == "" && s.GeminiAPIKey == "" {
		return ErrMissingAuth("rewrite")
	}

	if dir := filepath.Dir(s.LogFilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(s.ImageDownloadFolder, 0755); err != nil {
		return fmt.Errorf("failed to create image folder %s: %w", s.ImageDownloadFolder, err)
	}
	if s.SaveAnnotatedImage {
		if err := os.MkdirAll(s.AnnotatedFolder(), 0755); err != nil {
			return fmt.Errorf("failed to create annotated folder: %w", err)
		}
	}
	return nil
}

// AnnotatedFolder returns the folder receiving annotated images.
func (s *Settings) AnnotatedFolder() string {
	return filepath.Join(s.ImageDownloadFolder, AnnotatedSubfolder)
}

// SavesAnything reports whether any artifact (raw, annotated or json) is
// written after a successful generation.
func (s *Settings) SavesAnything() bool {
	return s.SaveRawImage || s.SaveAnnotatedImage || s.SaveJSONLog
}

// HTTPClient returns an HTTP client with the configured request timeout
// and TLS settings. All outbound calls should go through it.
func (s *Settings) HTTPClient() *http.Client {
	client := &http.Client{
		Timeout: s.RequestTimeout,
	}

	if s.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
