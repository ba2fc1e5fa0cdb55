package dummyfiles

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/trezcool/malipo/core"
)

// Service keeps stored files in memory; for tests and local development.
type Service struct {
	sync.RWMutex
	objects map[string][]byte

	// PutErr, when set, is returned by Put to simulate an unavailable store.
	PutErr error
}

var _ core.FileStorage = (*Service)(nil)

func NewService() *Service {
	return &Service{objects: make(map[string][]byte)}
}

func (svc *Service) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if svc.PutErr != nil {
		return svc.PutErr
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	svc.Lock()
	defer svc.Unlock()
	svc.objects[key] = data
	return nil
}

func (svc *Service) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://files.local/%s?expires=%d", key, int(expiry.Seconds())), nil
}

// Has reports whether an object was stored under key.
func (svc *Service) Has(key string) bool {
	svc.RLock()
	defer svc.RUnlock()
	_, ok := svc.objects[key]
	return ok
}

// Len reports the number of stored objects.
func (svc *Service) Len() int {
	svc.RLock()
	defer svc.RUnlock()
	return len(svc.objects)
}
