package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSendGridSenderRequiresKey(t *testing.T) {
	_, err := NewSendGridSender("  ")
	require.EqualError(t, err, "sendgrid API key is required")
}

func TestSendGridSenderSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	sender, err := NewSendGridSender("SG.test")
	require.NoError(t, err)
	sender.WithEndpoint(srv.URL + "/v3/mail/send")

	err = sender.Send(context.Background(), Message{
		FromName:    "Collections",
		FromAddress: "noreply@example.com",
		To:          "v@x.com",
		Subject:     "Verify your account",
		HTML:        `<html><head><style>p{}</style></head><body><p>Hello</p><a href="https://link.example.com/x">Verify</a></body></html>`,
	})
	require.NoError(t, err)

	require.Equal(t, "Verify your account", got["subject"])
	from := got["from"].(map[string]any)
	require.Equal(t, "noreply@example.com", from["email"])
	require.Equal(t, "Collections", from["name"])

	content := got["content"].([]any)
	require.Len(t, content, 2)
	plain := content[0].(map[string]any)
	require.Equal(t, "text/plain", plain["type"])
	require.Equal(t, "Hello https://link.example.com/x Verify", plain["value"])
}

func TestSendGridSenderRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	t.Cleanup(srv.Close)

	sender, err := NewSendGridSender("SG.test")
	require.NoError(t, err)
	sender.WithEndpoint(srv.URL)

	err = sender.Send(context.Background(), Message{To: "v@x.com", Subject: "s", HTML: "<p>x</p>"})
	require.EqualError(t, err, `sendgrid returned 401: {"errors":[{"message":"bad key"}]}`)
}

func TestSendGridSenderRequiresRecipient(t *testing.T) {
	sender, err := NewSendGridSender("SG.test")
	require.NoError(t, err)

	err = sender.Send(context.Background(), Message{Subject: "s"})
	require.EqualError(t, err, "recipient is required")
}
