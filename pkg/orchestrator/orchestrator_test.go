package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/fetch"
	"github.com/zen-systems/fieldscore/pkg/router"
)

type fakeFetcher struct {
	mu    sync.Mutex
	img   *fetch.Image
	err   error
	calls int
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, url string) (*fetch.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	img := *f.img
	img.URL = url
	return &img, nil
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (e *fakeExtractor) ExtractText(ctx context.Context, url string) (string, error) {
	e.calls++
	return e.text, e.err
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

func testImage() *fetch.Image {
	return &fetch.Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}
}

func quotaErr(provider string) error {
	return &adapter.AdapterError{Provider: provider, Kind: adapter.KindQuota, Status: 429, Err: errors.New("429 quota exceeded")}
}

func networkErr(provider string) error {
	return &adapter.AdapterError{Provider: provider, Kind: adapter.KindNetwork, Status: 503, Err: errors.New("service unavailable")}
}

// newTestOrchestrator wires adapters behind the default routing with fake
// collaborators and a recording sleep.
func newTestOrchestrator(adapters map[string]adapter.Adapter, routing *config.RoutingConfig, opts ...Option) (*Orchestrator, *sleepRecorder) {
	if routing == nil {
		routing = config.DefaultRoutingConfig()
	}
	rec := &sleepRecorder{}
	r := router.NewRouter(adapters, routing, router.WithAliases(config.DefaultAliases()))
	base := []Option{
		WithSleep(rec.sleep),
		WithFetcher(&fakeFetcher{img: testImage()}),
		WithExtractor(&fakeExtractor{text: "We built a library corner."}),
	}
	return New(r, append(base, opts...)...), rec
}
