package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pm-relay/internal/admin"
	"pm-relay/internal/message"
	"pm-relay/internal/storetest"
	"pm-relay/internal/thread"
)

func router(mem *storetest.Memory) http.Handler {
	h := admin.NewHandler(mem.Threads(), mem)
	r := chi.NewRouter()
	r.Get("/api/threads", h.ListThreads)
	r.Get("/api/threads/{threadID}/messages", h.ListMessages)
	return r
}

func TestListThreads(t *testing.T) {
	mem := storetest.New()
	ctx := context.Background()
	require.NoError(t, mem.Threads().Upsert(ctx, &thread.Thread{UserID: 1, ThreadID: 10, Label: "a"}))
	require.NoError(t, mem.Threads().Upsert(ctx, &thread.Thread{UserID: 2, ThreadID: 11, Label: "b"}))

	rec := httptest.NewRecorder()
	router(mem).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []thread.Thread
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, 11, got[0].ThreadID, "newest first")
}

func TestListThreadsEmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	router(storetest.New()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads", nil))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListMessages(t *testing.T) {
	mem := storetest.New()
	ctx := context.Background()
	require.NoError(t, mem.Append(ctx, &message.Correspondence{UserID: 1, ThreadID: 10, UserMessageID: 5, GroupMessageID: 6, Direction: message.UserToOwner}))
	require.NoError(t, mem.Append(ctx, &message.Correspondence{UserID: 2, ThreadID: 11, UserMessageID: 7, GroupMessageID: 8, Direction: message.UserToOwner}))

	rec := httptest.NewRecorder()
	router(mem).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/10/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []message.Correspondence
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, 6, got[0].GroupMessageID)
}

func TestListMessagesBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	router(storetest.New()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/abc/messages", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
