package pipeline

import (
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/types"
)

// ErrNoImages is returned for messages that carry no image at all.
var ErrNoImages = errors.New("message has no images")

// State is a step of message processing.
type State string

const (
	ReceivedImages      State = "received_images"
	RegionsDetected     State = "regions_detected"
	CandidatesExtracted State = "candidates_extracted"
	GenderResolved      State = "gender_resolved"
	ConceptsTagged      State = "concepts_tagged"
	LinksSearched       State = "links_searched"
	Delivered           State = "delivered"
)

// Detector finds regions in one image and turns them into candidates.
type Detector interface {
	Detect(ctx context.Context, src types.SourceImage) []types.DetectedRegion
	Candidates(src types.SourceImage, regions []types.DetectedRegion) []types.Candidate
}

// GenderClassifier picks the gender applied to every candidate of a message.
type GenderClassifier interface {
	Classify(ctx context.Context, images []types.SourceImage) types.Gender
}

// Tagger fills Candidate.Tags.
type Tagger interface {
	Tag(ctx context.Context, c *types.Candidate) error
}

// Searcher fills Candidate.CategoryID and Candidate.TopLinks.
type Searcher interface {
	Search(ctx context.Context, c *types.Candidate, gender types.Gender)
}

// Uploader stores an image and returns a URL the models can fetch.
type Uploader interface {
	Upload(ctx context.Context, sender string, data []byte, contentType string) (string, error)
}

// Recorder persists a processed message.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Result is the outcome of one inbound message.
type Result struct {
	ID         string            `json:"id"`
	Sender     string            `json:"sender"`
	Images     int               `json:"images"`
	Gender     types.Gender      `json:"gender,omitempty"`
	Candidates []types.Candidate `json:"candidates"`
	States     []State           `json:"states"`
	Duration   time.Duration     `json:"duration"`
}

// Options tune a Pipeline. Zero values select the defaults.
type Options struct {
	// Workers bounds concurrent tagging and search calls per message. Default 4.
	Workers int
	// Timeout bounds the processing of one message. Default 2 minutes.
	Timeout time.Duration
	// DedupeDistance is the maximum perceptual hash distance treated as the same image.
	// Negative disables deduplication.
	DedupeDistance int
}

// Pipeline turns one inbound message into shopping links.
type Pipeline struct {
	processor *processing.Processor
	detector  Detector
	gender    GenderClassifier
	tagger    Tagger
	searcher  Searcher
	uploader  Uploader
	recorder  Recorder
	opts      Options
	logger    *zap.Logger
}

// New creates a pipeline. The uploader and recorder are optional.
func New(processor *processing.Processor, detector Detector, gender GenderClassifier, tagger Tagger,
	searcher Searcher, uploader Uploader, recorder Recorder, opts Options, logger *zap.Logger) *Pipeline {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		processor: processor,
		detector:  detector,
		gender:    gender,
		tagger:    tagger,
		searcher:  searcher,
		uploader:  uploader,
		recorder:  recorder,
		opts:      opts,
		logger:    logger,
	}
}

// Process runs one message end to end. Failures of single images or candidates only remove
// that unit's results; an error is returned only for a message without images.
func (p *Pipeline) Process(ctx context.Context, msg types.InboundMessage) (*Result, error) {
	if len(msg.Images) == 0 {
		return nil, ErrNoImages
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	res := &Result{ID: uuid.NewString(), Sender: msg.Sender, Candidates: []types.Candidate{}}
	log := p.logger.With(zap.String("message_id", res.ID), zap.String("sender", msg.Sender))

	sources := p.receive(ctx, log, msg)
	res.Images = len(sources)
	res.States = append(res.States, ReceivedImages)

	regions := make([][]types.DetectedRegion, len(sources))
	for i, src := range sources {
		regions[i] = p.detector.Detect(ctx, src)
	}
	res.States = append(res.States, RegionsDetected)

	for i, src := range sources {
		res.Candidates = append(res.Candidates, p.detector.Candidates(src, regions[i])...)
	}
	res.States = append(res.States, CandidatesExtracted)
	log.Info("candidates extracted",
		zap.Int("images", len(sources)),
		zap.Int("candidates", len(res.Candidates)),
	)

	if len(res.Candidates) > 0 {
		res.Gender = p.gender.Classify(ctx, sources)
		res.States = append(res.States, GenderResolved)

		p.fanOut(ctx, res.Candidates, func(ctx context.Context, c *types.Candidate) {
			if err := p.tagger.Tag(ctx, c); err != nil {
				log.Warn("tagging failed, using detector concept",
					zap.String("concept", c.ConceptName),
					zap.Error(err),
				)
			}
		})
		res.States = append(res.States, ConceptsTagged)

		for i := range res.Candidates {
			res.Candidates[i].TopLinks = []string{}
		}
		p.fanOut(ctx, res.Candidates, func(ctx context.Context, c *types.Candidate) {
			p.searcher.Search(ctx, c, res.Gender)
		})
		res.States = append(res.States, LinksSearched)
	}

	res.Duration = time.Since(start)
	if p.recorder != nil {
		if err := p.recorder.Record(context.WithoutCancel(ctx), res); err != nil {
			log.Error("failed to record result", zap.Error(err))
		}
	}
	res.States = append(res.States, Delivered)

	log.Info("message processed",
		zap.String("gender", string(res.Gender)),
		zap.Int("candidates", len(res.Candidates)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// receive decodes, deduplicates and publishes the message images. Images that cannot be
// loaded are dropped.
func (p *Pipeline) receive(ctx context.Context, log *zap.Logger, msg types.InboundMessage) []types.SourceImage {
	var (
		sources []types.SourceImage
		raw     [][]byte
	)
	for i, ref := range msg.Images {
		img, data, err := p.processor.Load(ctx, ref)
		if err != nil {
			log.Warn("failed to load image", zap.Int("image", i), zap.Error(err))
			continue
		}
		sources = append(sources, types.SourceImage{Index: i, Ref: ref, Image: img, PublicURL: ref.URL})
		raw = append(raw, data)
	}

	if p.opts.DedupeDistance >= 0 && len(sources) > 1 {
		imgs := make([]image.Image, len(sources))
		for i, s := range sources {
			imgs[i] = s.Image
		}
		keep := processing.UniqueIndexes(imgs, p.opts.DedupeDistance)
		if len(keep) < len(sources) {
			log.Info("dropped duplicate images", zap.Int("duplicates", len(sources)-len(keep)))
			unique := make([]types.SourceImage, 0, len(keep))
			uniqueRaw := make([][]byte, 0, len(keep))
			for _, k := range keep {
				unique = append(unique, sources[k])
				uniqueRaw = append(uniqueRaw, raw[k])
			}
			sources, raw = unique, uniqueRaw
		}
	}

	if p.uploader != nil {
		for i := range sources {
			contentType := sources[i].Ref.ContentType
			if contentType == "" {
				contentType = http.DetectContentType(raw[i])
			}
			url, err := p.uploader.Upload(ctx, msg.Sender, raw[i], contentType)
			if err != nil {
				log.Warn("upload failed, models will receive bytes", zap.Int("image", sources[i].Index), zap.Error(err))
				continue
			}
			sources[i].PublicURL = url
		}
	}
	return sources
}

// fanOut runs fn for every candidate on a bounded pool. Each task owns exactly one
// element, so candidate order is preserved.
func (p *Pipeline) fanOut(ctx context.Context, cands []types.Candidate, fn func(ctx context.Context, c *types.Candidate)) {
	wp := pool.New().WithMaxGoroutines(p.opts.Workers).WithContext(ctx)
	for i := range cands {
		c := &cands[i]
		wp.Go(func(ctx context.Context) error {
			fn(ctx, c)
			return nil
		})
	}
	_ = wp.Wait()
}
