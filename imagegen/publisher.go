package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideobatch/annotate"
	"ideobatch/ideogram"
	"ideobatch/logging"
	"ideobatch/pipeline"
	"ideobatch/storage"
)

// NameTimeLayout is the timestamp prefix of artifact names.
const NameTimeLayout = "20060102150405"

// GeneratedTimeLayout formats the "Generated:" field of the params line.
const GeneratedTimeLayout = "2006-01-02 15:04:05"

// pngMagic opens every PNG file.
var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// ErrNothingToPublish is returned for a response without images.
var ErrNothingToPublish = errors.New("imagegen: response contained no image")

// PublisherConfig selects which artifacts are written.
type PublisherConfig struct {
	SaveRaw       bool
	SaveAnnotated bool
	SaveJSON      bool
}

// Record is the JSON artifact written next to each image.
type Record struct {
	Timestamp time.Time        `json:"Timestamp"`
	Request   ideogram.Request `json:"Request"`
	Response  ideogram.Image   `json:"Response"`
}

// Publisher writes the artifacts of a successful generation to a sink.
// It satisfies dispatch.Publisher.
//
// For every image in the response the publisher downloads the picture
// once, then writes the raw PNG (re-encoding other formats), the annotated copy and the JSON record as
// configured. Failures of one artifact do not stop the others; all errors
// are joined into the returned error.
type Publisher struct {
	downloader *Downloader
	renderer   *annotate.Renderer
	sink       storage.Sink
	cfg        PublisherConfig
	logger     *logging.Logger
	now        func() time.Time
	newID      func() string
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(l *logging.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = now }
}

// WithNameSource replaces the uuid part of artifact names.
func WithNameSource(newID func() string) PublisherOption {
	return func(p *Publisher) { p.newID = newID }
}

// NewPublisher creates a publisher.
func NewPublisher(downloader *Downloader, renderer *annotate.Renderer, sink storage.Sink, cfg PublisherConfig, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		downloader: downloader,
		renderer:   renderer,
		sink:       sink,
		cfg:        cfg,
		logger:     logging.NewNop(),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether any artifact is written.
func (p *Publisher) Enabled() bool {
	return p.cfg.SaveRaw || p.cfg.SaveAnnotated || p.cfg.SaveJSON
}

// ArtifactName returns "{yyyyMMddHHmmss}_{id}" for t in UTC.
func ArtifactName(t time.Time, id string) string {
	return t.UTC().Format(NameTimeLayout) + "_" + id
}

// Publish writes every image of resp and returns the saved locations.
func (p *Publisher) Publish(ctx context.Context, job pipeline.Job, resp *ideogram.Response) ([]string, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, ErrNothingToPublish
	}
	if !p.Enabled() {
		return nil, nil
	}

	stamp := p.now()
	req := job.Request()

	var locations []string
	var errs []error
	for _, img := range resp.Data {
		name := ArtifactName(stamp, p.newID())
		locs, err := p.publishImage(ctx, job, req, img, name, stamp)
		locations = append(locations, locs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return locations, errors.Join(errs...)
}

func (p *Publisher) publishImage(ctx context.Context, job pipeline.Job, req ideogram.Request, img ideogram.Image, name string, stamp time.Time) ([]string, error) {
	logger := p.logger.With(zap.Int("job", job.Index), zap.String("artifact", name))

	var locations []string
	var errs []error
	save := func(kind storage.Kind, data []byte) {
		loc, err := p.sink.Save(ctx, kind, data, name)
		if loc != "" {
			locations = append(locations, loc)
		}
		if err != nil {
			logger.Warn("failed to save artifact", zap.Stringer("kind", kind), zap.Error(err))
			errs = append(errs, fmt.Errorf("imagegen: save %s: %w", kind, err))
			return
		}
		logger.Debug("artifact saved", zap.Stringer("kind", kind), zap.String("location", loc))
	}

	if p.cfg.SaveRaw || p.cfg.SaveAnnotated {
		data, decoded, err := p.download(ctx, img.URL, logger)
		if err != nil {
			logger.Warn("failed to download image", zap.Error(err))
			errs = append(errs, err)
		} else {
			if p.cfg.SaveRaw {
				save(storage.KindRaw, data)
			}
			if p.cfg.SaveAnnotated {
				annotated, err := p.annotate(data, decoded, AnnotationBlocks(job, img, stamp))
				if err != nil {
					logger.Warn("failed to annotate image", zap.Error(err))
					errs = append(errs, err)
				} else {
					save(storage.KindAnnotated, annotated)
				}
			}
		}
	}

	if p.cfg.SaveJSON {
		record, err := marshalRecord(stamp, req, img)
		if err != nil {
			errs = append(errs, err)
		} else {
			save(storage.KindJSON, record)
		}
	}

	return locations, errors.Join(errs...)
}

// download fetches url as PNG bytes. When the service answered with
// another format the image is re-encoded and the decoded copy returned too.
func (p *Publisher) download(ctx context.Context, url string, logger *logging.Logger) ([]byte, image.Image, error) {
	data, contentType, err := p.downloader.DownloadBytes(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	data, decoded, err := asPNG(data)
	if err != nil {
		return nil, nil, err
	}
	if decoded != nil {
		logger.Debug("download re-encoded as png", zap.String("content_type", contentType))
	}
	return data, decoded, nil
}

// annotate draws blocks under the image. decoded is used when already
// available, otherwise data is decoded.
func (p *Publisher) annotate(data []byte, decoded image.Image, blocks []string) ([]byte, error) {
	src := decoded
	if src == nil {
		var err error
		if src, err = annotate.DecodeImage(data); err != nil {
			return nil, err
		}
	}
	dst, err := p.renderer.Annotate(src, blocks)
	if err != nil {
		return nil, err
	}
	return annotate.EncodePNG(dst)
}

// asPNG returns data unchanged when it already is a PNG. Any other format
// the decoder knows is re-encoded so raw artifacts always match their .png
// name; the decoded image is returned alongside for reuse.
func asPNG(data []byte) ([]byte, image.Image, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil, nil
	}
	decoded, err := annotate.DecodeImage(data)
	if err != nil {
		return nil, nil, fmt.Errorf("imagegen: downloaded image: %w", err)
	}
	encoded, err := annotate.EncodePNG(decoded)
	if err != nil {
		return nil, nil, err
	}
	return encoded, decoded, nil
}

// marshalRecord writes the JSON artifact. The echoed prompt is pruned like
// the annotation so steering text never reaches the record's response.
func marshalRecord(stamp time.Time, req ideogram.Request, img ideogram.Image) ([]byte, error) {
	img.Prompt = pipeline.PruneSteering(img.Prompt, pipeline.SeparatorMark)
	data, err := json.MarshalIndent(Record{Timestamp: stamp.UTC(), Request: req, Response: img}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("imagegen: marshal record: %w", err)
	}
	return data, nil
}

// AnnotationBlocks returns the text drawn under an image:
//
//  1. the visible prompt
//  2. "Generated prompt: <echo>" with steering pruned (only when echoed)
//  3. the parameter line (only when echoed)
//  4. one "Label: Value" block per job annotation
//
// The visible prompt already shows the Prompt annotation, or the Rewritten
// one when the prompt was rewritten. That annotation is not repeated, and
// a rewritten job gets a "Prompt:" block carrying the original instead.
func AnnotationBlocks(job pipeline.Job, img ideogram.Image, generatedAt time.Time) []string {
	blocks := []string{job.Prompt.Visible}

	if echo := pipeline.PruneSteering(img.Prompt, pipeline.SeparatorMark); echo != "" {
		blocks = append(blocks, "Generated prompt: "+echo, ParamsLine(job.Params, img, generatedAt))
	}

	_, rewritten := job.Annotation(pipeline.LabelRewritten)
	shown := pipeline.LabelPrompt
	if rewritten {
		shown = pipeline.LabelRewritten
	}
	for _, a := range job.Annotations {
		if a.Label == shown || strings.TrimSpace(a.Value) == "" {
			continue
		}
		blocks = append(blocks, a.Label+": "+a.Value)
	}
	return blocks
}

// ParamsLine renders the generation parameters, e.g.
//
//	AspectRatio: 1x1 Model: V_2 Seed: 42 Safe: true Style: general Generated: 2024-01-01 12:00:00
func ParamsLine(params ideogram.Params, img ideogram.Image, generatedAt time.Time) string {
	var b strings.Builder
	b.WriteString(params.Size.Describe())
	fmt.Fprintf(&b, " Model: %s Seed: %d Safe: %t Style: %s", params.Model, img.Seed, img.IsImageSafe, params.StyleType.Lower())
	if neg := strings.TrimSpace(params.NegativePrompt); neg != "" {
		b.WriteString(" Negative Prompt: " + neg)
	}
	b.WriteString(" Generated: " + generatedAt.Format(GeneratedTimeLayout))
	return b.String()
}
