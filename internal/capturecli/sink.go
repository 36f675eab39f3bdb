package capturecli

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// uploadSink starts an upload for each artifact the controller hands over.
type uploadSink struct {
	ctx       context.Context
	client    *Client
	sessionID string
	log       logger.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
	size map[model.AssetKind]int64
}

func newUploadSink(ctx context.Context, client *Client, sessionID string, l logger.Logger) *uploadSink {
	return &uploadSink{
		ctx:       ctx,
		client:    client,
		sessionID: sessionID,
		log:       l,
		size:      make(map[model.AssetKind]int64, 2),
	}
}

func (s *uploadSink) VideoRecorded(blob model.Blob)  { s.upload(model.AssetVideo, blob) }
func (s *uploadSink) PhotoConfirmed(blob model.Blob) { s.upload(model.AssetImage, blob) }
func (s *uploadSink) AgeSubmitted(int)               {}

func (s *uploadSink) upload(kind model.AssetKind, blob model.Blob) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.client.Upload(s.ctx, s.sessionID, kind, blob)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.errs = append(s.errs, err)
			s.log.Warn(s.ctx, "upload failed", logger.String("kind", string(kind)), logger.Error(err))
			return
		}
		s.size[kind] = blob.Size()
		s.log.Info(s.ctx, "upload accepted", logger.String("kind", string(kind)), logger.Int64("size_bytes", blob.Size()))
	}()
}

// Wait blocks until every started upload returned.
func (s *uploadSink) Wait() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}

func (s *uploadSink) bytes(kind model.AssetKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size[kind]
}
