package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive values.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match credentials that may appear inside free text such
// as error bodies or echoed request headers.
var sensitivePatterns = []*regexp.Regexp{
	// OpenAI and Google keys
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),
	regexp.MustCompile(`(AIza[a-zA-Z0-9_-]{35})`),

	// Api-Key header as echoed in request dumps
	regexp.MustCompile(`(?i)(api-key["']?\s*[:=]\s*["']?[^\s"',;]{8,})`),
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(secret(_key)?\s*[:=]\s*[^\s,;]{8,})`),

	// presigned S3 URLs
	regexp.MustCompile(`(?i)(X-Amz-Signature=[a-f0-9]+)`),
}

// sensitiveFieldNames are substrings of field or variable names whose
// values are always redacted.
var sensitiveFieldNames = []string{
	"IDEOGRAM_API_KEY",
	"OPENAI_API_KEY",
	"GEMINI_API_KEY",
	"API_KEY",
	"APIKEY",
	"API-KEY",
	"SECRET",
	"ACCESS_KEY",
	"PASSWORD",
	"TOKEN",
}

// RedactSensitiveData replaces every credential-looking substring of value.
//
// Example:
//
//	RedactSensitiveData("sent Api-Key: abcd1234efgh")
//	// "sent [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField reports whether a field name implies a secret value.
//
// Example:
//
//	IsSensitiveField("ideogram_api_key") // true
//	IsSensitiveField("prompt")           // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData reports whether value matches any credential pattern.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
