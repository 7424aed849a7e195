package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemagate/internal/platform/logger"
	"schemagate/pkg/secrets"
)

type fakeEvictor struct {
	mu        sync.Mutex
	evicted   []string
	flushAlls int
}

func (f *fakeEvictor) EvictDatabase(databaseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, databaseID)
	return 3
}

func (f *fakeEvictor) FlushAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushAlls++
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, databaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, databaseID)
	return f.err
}

func newFlushHandler(t *testing.T, secret string) (*AdminHandler, *fakeEvictor, *fakePublisher) {
	t.Helper()
	hash := ""
	if secret != "" {
		var err error
		hash, err = secrets.Hash(secret)
		require.NoError(t, err)
	}
	evictor := &fakeEvictor{}
	publisher := &fakePublisher{}
	return NewAdminHandler(hash, evictor, publisher, logger.New()), evictor, publisher
}

func flushRequestWith(secret, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/flush", bytes.NewBufferString(body))
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	return req
}

func TestFlushEvictsAndPublishes(t *testing.T) {
	h, evictor, publisher := newFlushHandler(t, "hunter2")

	rec := httptest.NewRecorder()
	h.HandleFlush(rec, flushRequestWith("hunter2", `{"databaseId":"db-1"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"db-1"}, evictor.evicted)
	assert.Equal(t, []string{"db-1"}, publisher.payloads)
}

func TestFlushEmptyBodyFlushesEverything(t *testing.T) {
	h, evictor, publisher := newFlushHandler(t, "hunter2")

	rec := httptest.NewRecorder()
	h.HandleFlush(rec, flushRequestWith("hunter2", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, evictor.flushAlls)
	assert.Empty(t, evictor.evicted)
	// The broadcast carries the flush-all payload for other processes.
	assert.Equal(t, []string{""}, publisher.payloads)
}

func TestFlushPublishFailureStillEvictsLocally(t *testing.T) {
	h, evictor, publisher := newFlushHandler(t, "hunter2")
	publisher.err = errors.New("redis gone")

	rec := httptest.NewRecorder()
	h.HandleFlush(rec, flushRequestWith("hunter2", `{"databaseId":"db-1"}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, []string{"db-1"}, evictor.evicted)
}

func TestFlushBadSecretRejected(t *testing.T) {
	h, evictor, _ := newFlushHandler(t, "hunter2")

	rec := httptest.NewRecorder()
	h.HandleFlush(rec, flushRequestWith("wrong", `{"databaseId":"db-1"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, evictor.evicted)
}

func TestFlushMissingCredentialRejected(t *testing.T) {
	h, evictor, _ := newFlushHandler(t, "hunter2")

	rec := httptest.NewRecorder()
	h.HandleFlush(rec, flushRequestWith("", `{"databaseId":"db-1"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, evictor.evicted)
}

func TestFlushDisabledWithoutSecretHash(t *testing.T) {
	h, evictor, _ := newFlushHandler(t, "")

	rec := httptest.NewRecorder()
	h.HandleFlush(rec, flushRequestWith("anything", `{"databaseId":"db-1"}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, evictor.evicted)
}
