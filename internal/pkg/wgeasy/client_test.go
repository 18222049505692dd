package wgeasy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode 模拟 WG-Easy 服务端：cookie 会话 + 新版接口路径
type fakeNode struct {
	mu        *http.ServeMux
	clients   []WGClient
	loginHits int
	deleted   []string
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()

	node := &fakeNode{mu: http.NewServeMux()}

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "ok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	node.mu.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		node.loginHits++
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusNoContent)
	})

	node.mu.HandleFunc("/api/wireguard/client", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(node.clients)
		case http.MethodPost:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			node.clients = append(node.clients, WGClient{
				ID:        "cl-" + body["name"],
				Name:      body["name"],
				Enabled:   true,
				CreatedAt: time.Now().Format(time.RFC3339Nano),
			})
			w.WriteHeader(http.StatusOK)
		}
	}))

	node.mu.HandleFunc("/api/wireguard/client/", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			id := r.URL.Path[len("/api/wireguard/client/"):]
			for _, d := range node.deleted {
				if d == id {
					w.WriteHeader(http.StatusNotFound)
					return
				}
			}
			node.deleted = append(node.deleted, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/wireguard/client/"), "/configuration")
		for _, d := range node.deleted {
			if d == id {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		w.Write([]byte("[Interface]\nPrivateKey = xxx\n"))
	}))

	server := httptest.NewServer(node.mu)
	t.Cleanup(server.Close)
	return node, server
}

func TestClient_CreateClient(t *testing.T) {
	node, server := newFakeNode(t)

	client := NewClient(server.URL, "pass", 5*time.Second)

	id, err := client.CreateClient(context.Background(), "device-1")
	require.NoError(t, err)
	assert.Equal(t, "cl-device-1", id)
	require.Len(t, node.clients, 1)
	assert.Equal(t, 1, node.loginHits)
}

func TestClient_CreateClient_WrongPassword(t *testing.T) {
	_, server := newFakeNode(t)

	client := NewClient(server.URL, "wrong", 5*time.Second)

	_, err := client.CreateClient(context.Background(), "device-1")
	assert.Error(t, err)
}

func TestClient_GetConfig(t *testing.T) {
	_, server := newFakeNode(t)

	client := NewClient(server.URL, "pass", 5*time.Second)

	_, err := client.CreateClient(context.Background(), "device-1")
	require.NoError(t, err)

	config, err := client.GetConfig(context.Background(), "cl-device-1")
	require.NoError(t, err)
	assert.Contains(t, config, "[Interface]")
}

func TestClient_GetConfig_NotFound(t *testing.T) {
	_, server := newFakeNode(t)

	client := NewClient(server.URL, "pass", 5*time.Second)

	_, err := client.CreateClient(context.Background(), "device-1")
	require.NoError(t, err)
	require.NoError(t, client.DeleteClient(context.Background(), "cl-device-1"))

	_, err = client.GetConfig(context.Background(), "cl-device-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_DeleteClient(t *testing.T) {
	node, server := newFakeNode(t)

	client := NewClient(server.URL, "pass", 5*time.Second)

	_, err := client.CreateClient(context.Background(), "device-1")
	require.NoError(t, err)

	err = client.DeleteClient(context.Background(), "cl-device-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cl-device-1"}, node.deleted)

	// 已删除的客户端返回 404，视为成功
	err = client.DeleteClient(context.Background(), "cl-device-1")
	assert.NoError(t, err)
}

func TestClient_PathProbing(t *testing.T) {
	// 只支持旧版 /api/client 路径的节点
	mux := http.NewServeMux()
	var clients []WGClient

	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/client", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(clients)
		case http.MethodPost:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			clients = append(clients, WGClient{ID: "old-1", Name: body["name"]})
			w.WriteHeader(http.StatusOK)
		}
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "pass", 5*time.Second)

	id, err := client.CreateClient(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, "old-1", id)
}

func TestClient_ReloginOnExpiredSession(t *testing.T) {
	sessionValid := false
	loginCount := 0
	mux := http.NewServeMux()

	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		loginCount++
		sessionValid = true
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/wireguard/client", func(w http.ResponseWriter, r *http.Request) {
		if !sessionValid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]WGClient{})
	})
	mux.HandleFunc("/api/wireguard/client/", func(w http.ResponseWriter, r *http.Request) {
		if !sessionValid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "pass", 5*time.Second)

	// 建立会话并探测路径
	err := client.DeleteClient(context.Background(), "some-id")
	require.NoError(t, err)

	// 会话失效后应自动重登
	sessionValid = false
	err = client.DeleteClient(context.Background(), "some-id")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, loginCount, 2)
}
