package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ideobatch/logging"
	"ideobatch/prompts"
)

// Annotation labels attached by the expander.
const (
	LabelPrompt    = "Prompt"
	LabelRewritten = "Rewritten"
	LabelVariant   = "Variant"
)

// Stats summarises one expansion.
type Stats struct {
	Input        int
	Unique       int
	Rejected     int
	Rewritten    int
	RewriteFails int
	Minted       int
	LimitReached bool
}

// Expander mints jobs. The zero value is usable and logs nothing.
type Expander struct {
	logger *logging.Logger
}

// NewExpander returns an Expander that logs nowhere.
func NewExpander() *Expander {
	return &Expander{logger: logging.NewNop()}
}

// WithLogger sets the logger used for skipped prompts and the summary.
func (e *Expander) WithLogger(logger *logging.Logger) *Expander {
	e.logger = logger
	return e
}

// Expand is NewExpander().Expand without rewriting context or stats.
//
// Example:
//
//	cfg := pipeline.DefaultRunConfig()
//	jobs, err := pipeline.Expand(lines, cfg)
func Expand(list []string, cfg RunConfig) ([]Job, error) {
	jobs, _, err := NewExpander().Expand(context.Background(), list, cfg)
	return jobs, err
}

// Expand turns list into at most cfg.CreationLimit jobs.
//
// The list is deduplicated (first occurrence wins) and then shuffled when
// cfg.RandomizeOrder is set. Each prompt is cleaned and filtered once; a
// rejected prompt mints nothing. Admitted prompts are optionally rewritten
// once, then crossed copy-major with the variants:
//
//	copy 1: variant 1, variant 2, ...
//	copy 2: variant 1, variant 2, ...
//
// Minting stops as soon as the limit is reached, even mid-prompt. The job
// that reaches the limit is kept.
func (e *Expander) Expand(ctx context.Context, list []string, cfg RunConfig) ([]Job, Stats, error) {
	stats := Stats{Input: len(list)}
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}

	logger := e.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	unique := prompts.Dedup(list)
	stats.Unique = len(unique)

	if cfg.RandomizeOrder {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })
		logger.Debug("shuffled prompts", zap.Int64("seed", seed))
	}

	jobs := make([]Job, 0, min(cfg.CreationLimit, len(unique)*cfg.CopiesPer*len(cfg.Variants)))
	var minted atomic.Int64

Prompts:
	for _, source := range unique {
		cleaned := cfg.Clean(source)
		if !cfg.Filter(cleaned) {
			stats.Rejected++
			logger.Debug("prompt rejected", zap.String("prompt", cleaned))
			continue
		}

		text := cleaned
		annotations := []Annotation{{Label: LabelPrompt, Value: cleaned}}
		if cfg.Rewriter != nil {
			rewritten, err := cfg.Rewriter.Rewrite(ctx, cleaned)
			switch {
			case err != nil:
				stats.RewriteFails++
				logger.Warn("prompt rewrite failed, using cleaned prompt", zap.Error(err))
			case rewritten != "" && rewritten != cleaned:
				stats.Rewritten++
				text = rewritten
				annotations = append(annotations, Annotation{Label: LabelRewritten, Value: rewritten})
			}
		}

		for c := 0; c < cfg.CopiesPer; c++ {
			for v, variant := range cfg.Variants {
				job := Job{
					Index:   len(jobs),
					Source:  source,
					Copy:    c,
					Variant: v,
					Prompt: PromptText{
						Visible:  cfg.PermanentPrefix + text,
						Steering: variant + cfg.PermanentSuffix,
					},
					Params:      cfg.Params,
					Annotations: withVariant(annotations, v, len(cfg.Variants)),
				}
				jobs = append(jobs, job)

				if minted.Add(1) >= int64(cfg.CreationLimit) {
					stats.LimitReached = true
					break Prompts
				}
			}
		}
	}

	stats.Minted = len(jobs)
	logger.Info("expanded prompts into jobs",
		zap.Int("input", stats.Input),
		zap.Int("unique", stats.Unique),
		zap.Int("rejected", stats.Rejected),
		zap.Int("rewritten", stats.Rewritten),
		zap.Int("jobs", stats.Minted),
		zap.Bool("limit_reached", stats.LimitReached))

	return jobs, stats, nil
}

// withVariant copies base and, when a run has several variants, appends
// the variant position. Each job owns its slice.
func withVariant(base []Annotation, v, n int) []Annotation {
	out := make([]Annotation, len(base), len(base)+1)
	copy(out, base)
	if n > 1 {
		out = append(out, Annotation{Label: LabelVariant, Value: fmt.Sprintf("%d/%d", v+1, n)})
	}
	return out
}
