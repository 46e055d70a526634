package extract

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"adpulse/internal/detect"
	"adpulse/internal/logger"
)

// Result is one URL's outcome. Err is set instead of failing the batch.
type Result struct {
	Article
	Signals  detect.AIContentSignals `json:"signals"`
	Category detect.Classification   `json:"category"`
	Err      string                  `json:"error,omitempty"`
	Duration time.Duration           `json:"-"`
}

type Extractor struct {
	Fetcher     Fetcher
	Classifier  *detect.Classifier
	Concurrency int
	Limiter     *rate.Limiter
}

// NewExtractor builds an extractor allowing rps page loads per second;
// rps <= 0 disables the limit.
func NewExtractor(f Fetcher, c *detect.Classifier, concurrency int, rps float64) *Extractor {
	var lim *rate.Limiter
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{Fetcher: f, Classifier: c, Concurrency: concurrency, Limiter: lim}
}

// Extract fetches and analyses one URL.
func (e *Extractor) Extract(ctx context.Context, url string) (res Result) {
	start := time.Now()
	res.URL = url
	defer func() { res.Duration = time.Since(start) }()

	page, err := e.Fetcher.Fetch(ctx, url)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	a, err := ExtractFromHTML(url, page)
	res.Article = a
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Signals = detect.DetectAIContentSignals(a.Text)
	if e.Classifier != nil {
		res.Category = e.Classifier.Classify(a.Title + "\n" + a.Text)
	}
	return res
}

// ExtractAll processes urls concurrently and returns results in input
// order. Only cancellation of ctx fails the batch.
func (e *Extractor) ExtractAll(ctx context.Context, urls []string) ([]Result, error) {
	results := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Concurrency)
	for i, url := range urls {
		i, url := i, url // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			if e.Limiter != nil {
				if err := e.Limiter.Wait(gctx); err != nil {
					return err
				}
			}
			results[i] = e.Extract(gctx, url)
			if results[i].Err != "" {
				logger.Warnf("extract %s: %s", url, results[i].Err)
			} else {
				logger.Debugf("extract %s: %d words, ai=%.2f, category=%s",
					url, results[i].WordCount, results[i].Signals.AILikelihood, results[i].Category.Category)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
