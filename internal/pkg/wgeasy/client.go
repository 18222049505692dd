package wgeasy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// ErrNotFound 节点侧不存在该客户端
var ErrNotFound = errors.New("wg-easy client not found")

// 不同版本的 WG-Easy 客户端接口路径不一致，按序探测
var clientPathVariants = []string{
	"/api/wireguard/client",
	"/api/client",
}

// WGClient 节点侧的客户端对象
type WGClient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"createdAt"`
}

// Client WG-Easy HTTP 客户端。登录后持有 session cookie，
// 会话失效时自动重登一次。
type Client struct {
	baseURL  string
	password string
	http     *http.Client

	mu         sync.Mutex
	loggedIn   bool
	activePath string
}

func NewClient(baseURL, password string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:  baseURL,
		password: password,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

// login 建立 session
func (c *Client) login(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"password": c.password})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wg-easy login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("wg-easy login rejected (%d)", resp.StatusCode)
	}

	c.loggedIn = true
	return nil
}

// doJSON 发送请求，401/403 时重登一次后重试
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		return c.send(ctx, method, path, payload)
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// clientPath 返回当前节点可用的客户端接口路径，首次调用时探测
func (c *Client) clientPath(ctx context.Context) (string, error) {
	if c.activePath != "" {
		return c.activePath, nil
	}

	for _, path := range clientPathVariants {
		resp, err := c.doLockedList(ctx, path)
		if err != nil {
			return "", err
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			continue
		}
		c.activePath = path
		return path, nil
	}

	return "", fmt.Errorf("wg-easy client api not found at %s", c.baseURL)
}

func (c *Client) doLockedList(ctx context.Context, path string) (*http.Response, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		return c.send(ctx, http.MethodGet, path, nil)
	}
	return resp, nil
}

// CreateClient 创建 WireGuard 客户端，返回节点侧 ID。
// 创建接口不返回对象，创建后按名字从列表反查。
func (c *Client) CreateClient(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return "", err
		}
	}

	path, err := c.clientPath(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, http.MethodPost, path, map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("wg-easy create client failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("wg-easy create client rejected (%d)", resp.StatusCode)
	}

	clients, err := c.listClients(ctx, path)
	if err != nil {
		return "", err
	}

	// 同名取最新
	var found *WGClient
	for i := range clients {
		cl := &clients[i]
		if cl.Name != name {
			continue
		}
		if found == nil || cl.CreatedAt > found.CreatedAt {
			found = cl
		}
	}
	if found == nil {
		return "", fmt.Errorf("wg-easy created client %q not found in list", name)
	}

	return found.ID, nil
}

func (c *Client) listClients(ctx context.Context, path string) ([]WGClient, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("wg-easy list clients failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("wg-easy list clients rejected (%d)", resp.StatusCode)
	}

	var clients []WGClient
	if err := json.NewDecoder(resp.Body).Decode(&clients); err != nil {
		return nil, fmt.Errorf("failed to decode client list: %w", err)
	}

	return clients, nil
}

// GetConfig 下载客户端配置文件文本
func (c *Client) GetConfig(ctx context.Context, clientID string) (string, error) {
	c.mu.Lock()
	path, err := c.clientPath(ctx)
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	resp, err := c.doJSON(ctx, http.MethodGet, path+"/"+clientID+"/configuration", nil)
	if err != nil {
		return "", fmt.Errorf("wg-easy get config failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("wg-easy get config rejected (%d)", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// DeleteClient 删除客户端。404 视为已删除，不报错。
func (c *Client) DeleteClient(ctx context.Context, clientID string) error {
	c.mu.Lock()
	path, err := c.clientPath(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	resp, err := c.doJSON(ctx, http.MethodDelete, path+"/"+clientID, nil)
	if err != nil {
		return fmt.Errorf("wg-easy delete client failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("wg-easy delete client rejected (%d)", resp.StatusCode)
	}

	return nil
}
