package idempotency

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/memory"
)

var createOrder = domain.IdempotencyScope{Command: "CreateOrder"}

func TestGuard_ReplaysFinishedRequest(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0)
	hash := domain.HashRequest(http.MethodPost, "/orders", []byte(`{"order_id":"O1"}`))

	_, replay, err := g.Begin(createOrder, "key-1", hash)
	require.NoError(t, err)
	assert.False(t, replay)

	_, _, err = g.Begin(createOrder, "key-1", hash)
	assert.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, g.Finish(createOrder, "key-1", http.StatusAccepted, []byte(`{"order_id":"O1"}`)))

	rec, replay, err := g.Begin(createOrder, "key-1", hash)
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, http.StatusAccepted, rec.HTTPStatus)
	assert.JSONEq(t, `{"order_id":"O1"}`, string(rec.ResponseBody))
}

func TestGuard_DifferentBodyIsMismatch(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0)
	_, _, err := g.Begin(createOrder, "key-1", "hash-a")
	require.NoError(t, err)

	_, _, err = g.Begin(createOrder, "key-1", "hash-b")
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestGuard_ServerErrorIsStoredAsFailed(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	g := NewGuard(repo, 0)
	_, _, err := g.Begin(createOrder, "key-1", "hash")
	require.NoError(t, err)

	require.NoError(t, g.Finish(createOrder, "key-1", http.StatusInternalServerError, []byte(`{}`)))
	rec, err := repo.Get(createOrder, "key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusFailed, rec.Status)
}

func TestGuard_ScopesDoNotShareReplies(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0)
	deleteO1 := domain.IdempotencyScope{Command: "DeleteOrder", ResourceID: "O1"}
	updateO1 := domain.IdempotencyScope{Command: "UpdateOrder", ResourceID: "O1"}

	_, _, err := g.Begin(deleteO1, "order-key", "hash-delete")
	require.NoError(t, err)
	require.NoError(t, g.Finish(deleteO1, "order-key", http.StatusAccepted, []byte(`{"command":"DeleteOrder"}`)))

	_, replay, err := g.Begin(updateO1, "order-key", "hash-update")
	require.NoError(t, err)
	assert.False(t, replay, "update must not replay the delete reply")

	rec, replay, err := g.Begin(deleteO1, "order-key", "hash-delete")
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, deleteO1, rec.Scope)
	assert.JSONEq(t, `{"command":"DeleteOrder"}`, string(rec.ResponseBody))
}

func TestGuard_CommandIsRequired(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0)
	_, _, err := g.Begin(domain.IdempotencyScope{}, "key-1", "hash")
	assert.ErrorIs(t, err, domain.ErrIdempotencyCommandRequired)
}
