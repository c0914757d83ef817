package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_NotifyEntryCreated(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PostsPayloadWithHeaders", func(t *testing.T) {
		var gotBody payload
		var gotAPIKey, gotIdempotencyKey string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			gotAPIKey = r.Header.Get("M-API-KEY")
			gotIdempotencyKey = r.Header.Get("X-Idempotency-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		client := NewClient(server.URL, "service-key", 5*time.Second)

		err := client.NotifyEntryCreated(ctx, "UR-20260829120000-0123456789-ABC123", "ZW5jcnlwdGVk")

		require.NoError(t, err)
		assert.Equal(t, "UR-20260829120000-0123456789-ABC123", gotBody.DocumentID)
		assert.Equal(t, "ZW5jcnlwdGVk", gotBody.EncryptedMobileNumber)
		assert.Equal(t, "service-key", gotAPIKey)
		_, err = uuid.Parse(gotIdempotencyKey)
		assert.NoError(t, err)
	})

	t.Run("Error_NonSuccessStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL, "service-key", 5*time.Second)

		err := client.NotifyEntryCreated(ctx, "UR-20260829120000-0123456789-ABC123", "ZW5jcnlwdGVk")

		assert.ErrorContains(t, err, "502")
	})

	t.Run("Error_Timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client := NewClient(server.URL, "service-key", 20*time.Millisecond)

		err := client.NotifyEntryCreated(ctx, "UR-20260829120000-0123456789-ABC123", "ZW5jcnlwdGVk")

		assert.Error(t, err)
	})

	t.Run("Error_UnreachableServer", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", "service-key", time.Second)

		err := client.NotifyEntryCreated(ctx, "UR-20260829120000-0123456789-ABC123", "ZW5jcnlwdGVk")

		assert.Error(t, err)
	})
}
