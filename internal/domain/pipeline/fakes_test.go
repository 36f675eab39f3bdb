package pipeline_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/facepace/internal/domain/model"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls map[model.AssetKind]int
	errs  map[model.AssetKind]error
	refs  map[model.AssetKind]string
	gate  chan struct{}
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		calls: make(map[model.AssetKind]int),
		errs:  make(map[model.AssetKind]error),
		refs:  map[model.AssetKind]string{model.AssetVideo: "v1", model.AssetImage: "i1"},
	}
}

func (f *fakeUploader) Upload(ctx context.Context, kind model.AssetKind, blob model.Blob) (*model.UploadedAsset, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	return &model.UploadedAsset{
		Kind:      kind,
		RemoteRef: f.refs[kind],
		Path:      fmt.Sprintf("%s-%d", kind, f.calls[kind]),
		SizeBytes: blob.Size(),
	}, nil
}

func (f *fakeUploader) count(kind model.AssetKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeUploader) fail(kind model.AssetKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[kind] = err
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	last   model.AnalysisRequest
	report *model.AnalysisReport
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeAnalyzer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// goDispatcher runs every job on its own goroutine.
type goDispatcher struct {
	reject bool
	wg     sync.WaitGroup
}

func (d *goDispatcher) Dispatch(_ context.Context, kind, id string, fn func(ctx context.Context) error) error {
	if d.reject {
		return fmt.Errorf("%w: %s %s", model.ErrBackpressure, kind, id)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = fn(context.Background())
	}()
	return nil
}

var (
	videoBlob = model.Blob{Data: []byte("webm-bytes"), ContentType: "video/webm"}
	imageBlob = model.Blob{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"}
)
