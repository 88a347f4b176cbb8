package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm-relay/internal/event"
	"pm-relay/internal/platform/telegram"
)

const privateText = `{"update_id":%ID%,"message":{"message_id":5,"date":0,` +
	`"chat":{"id":42,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"Ann"},"text":"hi"}}`

func update(id string) string { return strings.ReplaceAll(privateText, "%ID%", id) }

type memDedupe struct {
	mu   sync.Mutex
	seen map[int64]bool
	err  error
}

func (d *memDedupe) Seen(_ context.Context, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return true, nil
	}
	d.seen[id] = true
	return false, nil
}

func (d *memDedupe) Forget(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type submitter struct {
	events []event.Event
	err    error
}

func (s *submitter) Submit(ev event.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func newHandler(secret string) (*Handler, *submitter, *memDedupe) {
	sub := &submitter{}
	dd := &memDedupe{seen: make(map[int64]bool)}
	h := NewHandler(secret, telegram.Audience{OwnerID: 1, GroupID: -100}, dd, sub, "test", zap.NewNop())
	return h, sub, dd
}

func post(h *Handler, body string, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeUpdate(rec, req)
	return rec
}

func TestUpdateIsSubmitted(t *testing.T) {
	h, sub, _ := newHandler("")

	rec := post(h, update("1"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sub.events, 1)
	um, ok := sub.events[0].(event.UserMessage)
	require.True(t, ok)
	assert.Equal(t, int64(1), um.UpdateID)
	assert.Equal(t, "hi", um.Message.Text)
}

func TestDuplicateUpdateIsDropped(t *testing.T) {
	h, sub, _ := newHandler("")

	post(h, update("7"), "")
	rec := post(h, update("7"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sub.events, 1)
}

func TestDedupeFailureFailsOpen(t *testing.T) {
	h, sub, dd := newHandler("")
	dd.err = errors.New("redis down")

	post(h, update("7"), "")
	post(h, update("7"), "")
	assert.Len(t, sub.events, 2)
}

func TestSecretIsChecked(t *testing.T) {
	h, sub, _ := newHandler("s3")

	assert.Equal(t, http.StatusUnauthorized, post(h, update("1"), "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(h, update("1"), "nope").Code)
	assert.Equal(t, http.StatusOK, post(h, update("1"), "s3").Code)
	assert.Len(t, sub.events, 1)
}

func TestBadBody(t *testing.T) {
	h, _, _ := newHandler("")
	assert.Equal(t, http.StatusBadRequest, post(h, "{", "").Code)
}

func TestIrrelevantUpdateIsAcknowledged(t *testing.T) {
	h, sub, _ := newHandler("")
	body := `{"update_id":3,"message":{"message_id":5,"date":0,"chat":{"id":-555,"type":"supergroup"},` +
		`"from":{"id":77,"is_bot":false,"first_name":"X"},"text":"hello"}}`

	assert.Equal(t, http.StatusOK, post(h, body, "").Code)
	assert.Empty(t, sub.events)
}

func TestSubmitFailure(t *testing.T) {
	h, sub, _ := newHandler("")
	sub.err = errors.New("closed")
	assert.Equal(t, http.StatusServiceUnavailable, post(h, update("1"), "").Code)
}

func TestRedeliveryAfterSubmitFailure(t *testing.T) {
	h, sub, _ := newHandler("")
	sub.err = errors.New("closed")
	require.Equal(t, http.StatusServiceUnavailable, post(h, update("77"), "").Code)

	sub.err = nil
	assert.Equal(t, http.StatusOK, post(h, update("77"), "").Code)
	assert.Len(t, sub.events, 1, "the redelivered update is processed")

	assert.Equal(t, http.StatusOK, post(h, update("77"), "").Code)
	assert.Len(t, sub.events, 1, "and only once")
}

func TestStatus(t *testing.T) {
	h, _, _ := newHandler("")
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"status":"running","version":"test"}`, rec.Body.String())
}

func TestRedisDeduper(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	id := time.Now().UnixNano()
	d := NewRedisDeduper(client)
	seen, err := d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, d.Forget(ctx, id))
	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)
}
