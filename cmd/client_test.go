package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eou/internal/clix"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientURL(t *testing.T) {
	u, err := clientURL("ws://localhost:8080/v1/stream", "k&y")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/v1/stream?api_key=k%26y", u)
	assert.Equal(t, "ws://localhost:8080/v1/stream?api_key=%2A%2A%2A", redactKey(u))

	_, err = clientURL("http://localhost/v1/stream", "x")
	assert.ErrorContains(t, err, "scheme")
}

func TestRunClient(t *testing.T) {
	received := make(chan map[string]any, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			_ = json.Unmarshal(data, &msg)
			received <- msg
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"path":"A","score":0.9,"calculation_time":0.01}`))
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	err := runClient(context.Background(), endpoint, clix.DefaultCandidates(), strings.NewReader("my bill\n\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Sent!")
	assert.Contains(t, out.String(), `"path":"A"`)
	assert.Contains(t, out.String(), "Closing connection")
	require.Len(t, received, 1)
	msg := <-received
	assert.Equal(t, "my bill", msg["input"])
	assert.Len(t, msg["path_descriptions"], 3)
}

func TestLoadConversation(t *testing.T) {
	dir := t.TempDir()
	arr := filepath.Join(dir, "arr.json")
	obj := filepath.Join(dir, "obj.json")
	require.NoError(t, os.WriteFile(arr, []byte(`[{"role":"user","content":"hi there"}]`), 0o644))
	require.NoError(t, os.WriteFile(obj, []byte(`{"messages":[{"role":"assistant","content":"hello"},{"content":"yes"}]}`), 0o644))

	req, err := loadConversation(arr)
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hi there", req.Messages[0].Content)

	req, err = loadConversation(obj)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "user", req.Messages[1].Role)

	_, err = loadConversation(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
