package ideogram

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRequestJSON_ExactlyOneSizeKey(t *testing.T) {
	seed := 7
	tests := []struct {
		name    string
		size    Size
		present string
		absent  string
	}{
		{"aspect ratio", AspectRatio(Aspect16x9), `"aspect_ratio":"ASPECT_16_9"`, `"resolution"`},
		{"resolution", Resolution(Resolution1024x1024), `"resolution":"RESOLUTION_1024_1024"`, `"aspect_ratio"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Request{Prompt: "p", Size: tt.size, Seed: &seed})
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			s := string(data)
			if !strings.Contains(s, tt.present) {
				t.Errorf("expected %s in %s", tt.present, s)
			}
			if strings.Contains(s, tt.absent) {
				t.Errorf("unexpected %s in %s", tt.absent, s)
			}
			if !strings.Contains(s, `"seed":7`) {
				t.Errorf("seed missing from %s", s)
			}
		})
	}
}

func TestRequestUnmarshal_RejectsBothSizes(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"prompt":"p","aspect_ratio":"ASPECT_1_1","resolution":"RESOLUTION_1024_1024"}`), &req)
	if !errors.Is(err, ErrConflictingSize) {
		t.Errorf("expected ErrConflictingSize, got %v", err)
	}
}

func TestRequestUnmarshal_Resolution(t *testing.T) {
	var req Request
	if err := json.Unmarshal([]byte(`{"prompt":"p","resolution":"RESOLUTION_1280_768","model":"V_2_TURBO"}`), &req); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	res, ok := req.Size.Resolution()
	if !ok || res != Resolution1280x768 {
		t.Errorf("expected resolution RESOLUTION_1280_768, got %v", req.Size)
	}
	if _, ok := req.Size.AspectRatio(); ok {
		t.Error("aspect ratio should be unset")
	}
	if req.Model != ModelV2Turbo {
		t.Errorf("model = %q", req.Model)
	}
}

func TestSizeDescribe(t *testing.T) {
	tests := []struct {
		size Size
		want string
	}{
		{AspectRatio(Aspect1x1), "AspectRatio: 1x1"},
		{AspectRatio(Aspect10x16), "AspectRatio: 10x16"},
		{Resolution(Resolution768x1344), "Resolution: RESOLUTION_768_1344"},
		{Size{}, ""},
	}
	for _, tt := range tests {
		if got := tt.size.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}

func TestAspectRatioShort(t *testing.T) {
	all := map[AspectRatioValue]string{
		Aspect10x16: "10x16", Aspect16x10: "16x10", Aspect9x16: "9x16", Aspect16x9: "16x9",
		Aspect3x2: "3x2", Aspect2x3: "2x3", Aspect4x3: "4x3", Aspect3x4: "3x4",
		Aspect1x1: "1x1", Aspect1x3: "1x3", Aspect3x1: "3x1",
		AspectRatioValue("WEIRD"): "WEIRD",
	}
	for value, want := range all {
		if got := value.Short(); got != want {
			t.Errorf("%s.Short() = %q, want %q", value, got, want)
		}
	}
}

func TestStyleTypeLower(t *testing.T) {
	if StyleRender3D.Lower() != "render_3d" {
		t.Errorf("Lower() = %q", StyleRender3D.Lower())
	}
}
