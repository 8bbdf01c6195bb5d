// Package ideogram is a client for the Ideogram image generation API.
//
// types.go holds the enumerations accepted by the /generate endpoint. Each
// value marshals to the exact upper-case token the service expects.
package ideogram

import "strings"

// Model selects the Ideogram model version.
type Model string

const (
	ModelV1      Model = "V_1"
	ModelV1Turbo Model = "V_1_TURBO"
	ModelV2      Model = "V_2"
	ModelV2Turbo Model = "V_2_TURBO"
)

// MagicPrompt controls server-side prompt expansion.
type MagicPrompt string

const (
	MagicPromptAuto MagicPrompt = "AUTO"
	MagicPromptOn   MagicPrompt = "ON"
	MagicPromptOff  MagicPrompt = "OFF"
)

// StyleType is the rendering style hint. Only V_2 models honour it.
type StyleType string

const (
	StyleAuto      StyleType = "AUTO"
	StyleGeneral   StyleType = "GENERAL"
	StyleRealistic StyleType = "REALISTIC"
	StyleDesign    StyleType = "DESIGN"
	StyleRender3D  StyleType = "RENDER_3D"
	StyleAnime     StyleType = "ANIME"
)

// Lower returns the style name in lower case ("general"), the form used on
// annotations.
func (s StyleType) Lower() string {
	return strings.ToLower(string(s))
}

// AspectRatioValue is one of the fixed aspect ratios.
type AspectRatioValue string

const (
	Aspect10x16 AspectRatioValue = "ASPECT_10_16"
	Aspect16x10 AspectRatioValue = "ASPECT_16_10"
	Aspect9x16  AspectRatioValue = "ASPECT_9_16"
	Aspect16x9  AspectRatioValue = "ASPECT_16_9"
	Aspect3x2   AspectRatioValue = "ASPECT_3_2"
	Aspect2x3   AspectRatioValue = "ASPECT_2_3"
	Aspect4x3   AspectRatioValue = "ASPECT_4_3"
	Aspect3x4   AspectRatioValue = "ASPECT_3_4"
	Aspect1x1   AspectRatioValue = "ASPECT_1_1"
	Aspect1x3   AspectRatioValue = "ASPECT_1_3"
	Aspect3x1   AspectRatioValue = "ASPECT_3_1"
)

// Short renders the ratio as "16x9". Unknown values are returned as-is.
func (a AspectRatioValue) Short() string {
	rest, ok := strings.CutPrefix(string(a), "ASPECT_")
	if !ok {
		return string(a)
	}
	return strings.Replace(rest, "_", "x", 1)
}

// ResolutionValue is an explicit output resolution, e.g. RESOLUTION_1024_1024.
// The service accepts a long fixed list; values are passed through verbatim.
type ResolutionValue string

const (
	Resolution1024x1024 ResolutionValue = "RESOLUTION_1024_1024"
	Resolution1280x768  ResolutionValue = "RESOLUTION_1280_768"
	Resolution768x1280  ResolutionValue = "RESOLUTION_768_1280"
	Resolution1344x768  ResolutionValue = "RESOLUTION_1344_768"
	Resolution768x1344  ResolutionValue = "RESOLUTION_768_1344"
)
