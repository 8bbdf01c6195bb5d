package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeSettingsFileMissing = "SETTINGS_FILE_MISSING"
	ErrCodeInvalidSettingsFile = "INVALID_SETTINGS_FILE"
	ErrCodeMissingAuth         = "MISSING_AUTH"
	ErrCodeMissingConfig       = "MISSING_CONFIG"
	ErrCodeInvalidValue        = "INVALID_VALUE"
)

// ErrSettingsFileMissing returns an error for an explicitly named settings file that does not exist.
func ErrSettingsFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeSettingsFileMissing,
		Message: fmt.Sprintf("Settings file not found: %s", path),
		Action:  "Create the file or omit -settings to use ideogram-settings.yaml and environment variables",
	}
}

// ErrInvalidSettingsFile returns an error for a settings file that cannot be parsed.
func ErrInvalidSettingsFile(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidSettingsFile,
		Message: fmt.Sprintf("Settings file %s could not be parsed: %s", path, reason),
		Action:  "Fix the YAML/JSON syntax in the settings file",
	}
}

// ErrMissingAuth returns an error for missing authentication credentials
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "ideogram":
		action = "Set IDEOGRAM_API_KEY or ideogram_api_key in the settings file"
	case "rewrite":
		action = "Set OPENAI_API_KEY or GEMINI_API_KEY, or disable rewrite_prompts"
	default:
		action = fmt.Sprintf("Set the required API key for %s", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in the environment or the settings file", varName),
	}
}

// ErrInvalidValue returns an error for a configuration value outside its allowed range.
func ErrInvalidValue(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Correct %s and restart", varName),
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
