package stubserver

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"messaging-sync/internal/api"
	"messaging-sync/internal/models"
	syncmgr "messaging-sync/internal/sync"
)

func newMultipartFile(t *testing.T, buf *bytes.Buffer, field, name string, data []byte) string {
	t.Helper()
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return writer.FormDataContentType()
}

// Full loop: the sync manager drives the real API client against the stub
// backend, covering deep-link init, optimistic append and reconciliation.
func TestManagerAgainstStubBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore()
	store.AddUser(User{ID: 1, Name: "Amara"})
	store.AddUser(User{ID: 2, Name: "Juma"})

	backend := httptest.NewServer(NewServer(store).Router())
	defer backend.Close()

	client := api.NewClient(backend.URL+"/api", api.WithUserID(1))
	manager := syncmgr.NewManager(client, nil,
		syncmgr.WithTarget(2),
		syncmgr.WithSelfUser(1),
		syncmgr.WithReconcileDelay(10*time.Millisecond),
	)
	defer manager.Close()

	ctx := context.Background()
	manager.Start(ctx)

	snap := manager.Snapshot()
	require.Empty(t, snap.Err)
	require.Len(t, snap.Conversations, 1)
	require.Equal(t, 2, snap.SelectedID)
	require.Empty(t, snap.Messages)

	conv := snap.Conversations[0]
	require.NoError(t, manager.SendMessage(ctx, "habari Juma", nil, &conv))

	// Optimistic copy lands immediately.
	snap = manager.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, models.SenderSelf, snap.Messages[0].Sender)

	// Reconciliation replaces it with the server-assigned copy.
	require.Eventually(t, func() bool {
		snap := manager.Snapshot()
		return len(snap.Messages) == 1 &&
			snap.Messages[0].ID == 1 &&
			len(snap.Conversations) == 1 &&
			snap.Conversations[0].LastMessage == "habari Juma"
	}, 2*time.Second, 10*time.Millisecond)
}
