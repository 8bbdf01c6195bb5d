package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"ideobatch/ideogram"
	"ideobatch/prompts"
)

func baseConfig() RunConfig {
	return RunConfig{
		Clean:         prompts.DefaultCleaner(),
		Filter:        prompts.DefaultFilter(),
		CreationLimit: 100,
		CopiesPer:     1,
		Variants:      []string{""},
		Params:        ideogram.DefaultParams(),
	}
}

func TestExpand_ScenarioCopiesAndVariants(t *testing.T) {
	cfg := baseConfig()
	cfg.CopiesPer = 2
	cfg.Variants = []string{"", "V2"}

	jobs, err := Expand([]string{"a cat sitting", "a cat sitting", "x"}, cfg)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}

	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}

	want := []struct {
		copy, variant int
		steering      string
	}{
		{0, 0, ""}, {0, 1, "V2"}, {1, 0, ""}, {1, 1, "V2"},
	}
	for i, w := range want {
		job := jobs[i]
		if job.Index != i || job.Copy != w.copy || job.Variant != w.variant {
			t.Errorf("job %d: got index=%d copy=%d variant=%d, want copy=%d variant=%d",
				i, job.Index, job.Copy, job.Variant, w.copy, w.variant)
		}
		if job.Prompt.Visible != "a cat sitting" {
			t.Errorf("job %d: visible = %q", i, job.Prompt.Visible)
		}
		if job.Prompt.Steering != w.steering {
			t.Errorf("job %d: steering = %q, want %q", i, job.Prompt.Steering, w.steering)
		}
	}
}

func TestExpand_LimitStopsMidExpansion(t *testing.T) {
	cfg := baseConfig()
	cfg.CopiesPer = 2
	cfg.Variants = []string{"", "V2"}
	cfg.CreationLimit = 2

	jobs, stats, err := NewExpander().Expand(context.Background(), []string{"a cat sitting", "a cat sitting", "x"}, cfg)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Variant != 0 || jobs[1].Variant != 1 || jobs[1].Copy != 0 {
		t.Errorf("limit should stop after copy 1 variant 2, got %+v", jobs[1])
	}
	if !stats.LimitReached {
		t.Error("LimitReached should be set")
	}
}

func TestExpand_NeverExceedsLimit(t *testing.T) {
	var list []string
	for i := 0; i < 40; i++ {
		list = append(list, fmt.Sprintf("prompt number %d about things", i))
	}

	for limit := 1; limit <= 130; limit += 7 {
		for _, copies := range []int{1, 2, 3} {
			cfg := baseConfig()
			cfg.CreationLimit = limit
			cfg.CopiesPer = copies
			cfg.Variants = []string{"", "a", "b"}
			cfg.RandomizeOrder = true
			cfg.Seed = int64(limit)

			jobs, err := Expand(list, cfg)
			if err != nil {
				t.Fatalf("Expand() error: %v", err)
			}
			want := min(limit, len(list)*copies*3)
			if len(jobs) != want {
				t.Errorf("limit=%d copies=%d: got %d jobs, want %d", limit, copies, len(jobs), want)
			}
		}
	}
}

func TestExpand_SingleVariantSingleCopyCountsSurvivors(t *testing.T) {
	list := []string{
		"a red fox in the snow",
		"a red fox in the snow",
		`"a blue whale -hd underwater",`,
		"tiny",
		"a broken,, prompt here",
		"a quiet library at night",
	}
	cfg := baseConfig()

	jobs, err := Expand(list, cfg)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}

	survivors := 0
	for _, p := range prompts.Dedup(list) {
		if cfg.Filter(cfg.Clean(p)) {
			survivors++
		}
	}
	if len(jobs) != survivors || survivors != 3 {
		t.Errorf("expected %d jobs (3 survivors), got %d", survivors, len(jobs))
	}
	if jobs[1].Prompt.Visible != "a blue whale underwater" {
		t.Errorf("expected cleaned prompt, got %q", jobs[1].Prompt.Visible)
	}
	if jobs[1].Source != `"a blue whale -hd underwater",` {
		t.Errorf("Source should keep the raw line, got %q", jobs[1].Source)
	}
}

func TestExpand_FilterRunsOncePerPrompt(t *testing.T) {
	cleanCalls, filterCalls := 0, 0
	cfg := baseConfig()
	cfg.CopiesPer = 3
	cfg.Variants = []string{"", "b", "c"}
	cfg.Clean = func(s string) string { cleanCalls++; return s }
	cfg.Filter = func(s string) bool { filterCalls++; return !strings.HasPrefix(s, "skip") }

	jobs, err := Expand([]string{"keep this prompt", "skip this prompt"}, cfg)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if cleanCalls != 2 || filterCalls != 2 {
		t.Errorf("expected one clean and one filter call per prompt, got %d/%d", cleanCalls, filterCalls)
	}
	if len(jobs) != 9 {
		t.Errorf("expected 9 jobs, got %d", len(jobs))
	}
}

func TestExpand_PrefixSuffixAndFinalText(t *testing.T) {
	cfg := baseConfig()
	cfg.PermanentPrefix = "Poster: "
	cfg.PermanentSuffix = " (((sharp)))"
	cfg.Variants = []string{" titled"}

	jobs, err := Expand([]string{"a cat sitting"}, cfg)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}

	got := jobs[0].Prompt.FinalText()
	want := "Poster: a cat sitting ___  titled (((sharp)))"
	if got != want {
		t.Errorf("FinalText() = %q, want %q", got, want)
	}
	if jobs[0].Request().Prompt != want {
		t.Error("Request() should carry the final text")
	}
	if _, ok := jobs[0].Annotation(LabelVariant); ok {
		t.Error("single-variant runs should not annotate the variant")
	}
}

func TestExpand_ShuffleDeterministicWithSeed(t *testing.T) {
	var list []string
	for i := 0; i < 20; i++ {
		list = append(list, fmt.Sprintf("prompt number %d here", i))
	}
	original := append([]string(nil), list...)

	cfg := baseConfig()
	cfg.RandomizeOrder = true
	cfg.Seed = 42

	first, _ := Expand(list, cfg)
	second, _ := Expand(list, cfg)

	order := func(jobs []Job) []string {
		out := make([]string, len(jobs))
		for i, j := range jobs {
			out[i] = j.Source
		}
		return out
	}
	if !reflect.DeepEqual(order(first), order(second)) {
		t.Error("same seed should give the same order")
	}
	if reflect.DeepEqual(order(first), original) {
		t.Error("shuffle left 20 prompts in input order")
	}
	if !reflect.DeepEqual(list, original) {
		t.Error("Expand must not reorder the caller's slice")
	}
}

func TestExpand_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*RunConfig)
		field string
	}{
		{"no variants", func(c *RunConfig) { c.Variants = nil }, "Variants"},
		{"zero limit", func(c *RunConfig) { c.CreationLimit = 0 }, "CreationLimit"},
		{"negative limit", func(c *RunConfig) { c.CreationLimit = -3 }, "CreationLimit"},
		{"zero copies", func(c *RunConfig) { c.CopiesPer = 0 }, "CopiesPer"},
		{"nil clean", func(c *RunConfig) { c.Clean = nil }, "Clean"},
		{"nil filter", func(c *RunConfig) { c.Filter = nil }, "Filter"},
		{"no size", func(c *RunConfig) { c.Params.Size = ideogram.Size{} }, "Params.Size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mut(&cfg)

			jobs, err := Expand([]string{"a cat sitting"}, cfg)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.field)
			}
			if jobs != nil {
				t.Error("no jobs should be returned on validation error")
			}
		})
	}
}

type stubRewriter struct {
	calls int
	fail  bool
}

func (s *stubRewriter) Rewrite(_ context.Context, prompt string) (string, error) {
	s.calls++
	if s.fail {
		return "", errors.New("llm down")
	}
	return prompt + ", golden hour", nil
}

func TestExpand_Rewriter(t *testing.T) {
	rw := &stubRewriter{}
	cfg := baseConfig()
	cfg.CopiesPer = 2
	cfg.Variants = []string{"", "b"}
	cfg.Rewriter = rw

	jobs, stats, err := NewExpander().Expand(context.Background(), []string{"a cat sitting", "a dog running"}, cfg)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if rw.calls != 2 {
		t.Errorf("rewriter should run once per prompt, ran %d times", rw.calls)
	}
	if stats.Rewritten != 2 {
		t.Errorf("Rewritten = %d, want 2", stats.Rewritten)
	}
	if jobs[0].Prompt.Visible != "a cat sitting, golden hour" {
		t.Errorf("rewritten prompt not used: %q", jobs[0].Prompt.Visible)
	}
	if v, _ := jobs[0].Annotation(LabelPrompt); v != "a cat sitting" {
		t.Errorf("Prompt annotation should keep the cleaned prompt, got %q", v)
	}
	if v, _ := jobs[3].Annotation(LabelVariant); v != "2/2" {
		t.Errorf("variant annotation = %q, want 2/2", v)
	}
}

func TestExpand_RewriterFailureFallsBack(t *testing.T) {
	cfg := baseConfig()
	cfg.Rewriter = &stubRewriter{fail: true}

	jobs, stats, err := NewExpander().Expand(context.Background(), []string{"a cat sitting"}, cfg)
	if err != nil {
		t.Fatalf("rewrite failure must not fail expansion: %v", err)
	}
	if jobs[0].Prompt.Visible != "a cat sitting" {
		t.Errorf("expected fallback to cleaned prompt, got %q", jobs[0].Prompt.Visible)
	}
	if stats.RewriteFails != 1 {
		t.Errorf("RewriteFails = %d, want 1", stats.RewriteFails)
	}
}

func TestPruneSteering(t *testing.T) {
	tests := []struct {
		echo string
		want string
	}{
		{"a cat sitting ___ (((steer)))", "a cat sitting"},
		{"a cat sitting___x ___ y", "a cat sitting"},
		{"  a cat sitting  ", "a cat sitting"},
		{"___ only steering", ""},
	}
	for _, tt := range tests {
		if got := PruneSteering(tt.echo, SeparatorMark); got != tt.want {
			t.Errorf("PruneSteering(%q) = %q, want %q", tt.echo, got, tt.want)
		}
	}
}

func TestDefaultRunConfigValid(t *testing.T) {
	cfg := DefaultRunConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultRunConfig() invalid: %v", err)
	}
	if cfg.CreationLimit != 50 || cfg.CopiesPer != 2 || len(cfg.Variants) != 2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
