package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/pkg/response"
	"github.com/qs3c/vpn_go_server/internal/pkg/yookassa"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-key"
	cfg.JWT.ExpireHours = 24
	cfg.Billing.Currency = "RUB"
	cfg.Billing.AddonPrice = 50
	cfg.Billing.AddonPeriodDays = 30
	cfg.WGEasy.TimeoutSeconds = 5
	return cfg
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	return performAuthedRequest(r, method, path, body, "")
}

func performAuthedRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// memProvisioner 内存版节点客户端
type memProvisioner struct {
	mu      sync.Mutex
	nextID  int
	clients map[string]bool
}

func newMemProvisioner() *memProvisioner {
	return &memProvisioner{clients: make(map[string]bool)}
}

func (p *memProvisioner) CreateClient(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("wg-%d", p.nextID)
	p.clients[id] = true
	return id, nil
}

func (p *memProvisioner) GetConfig(ctx context.Context, clientID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.clients[clientID] {
		return "", fmt.Errorf("client %s not found", clientID)
	}
	return "[Interface]\nPrivateKey = test\n", nil
}

func (p *memProvisioner) DeleteClient(ctx context.Context, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, clientID)
	return nil
}

// memGateway 预设状态的支付网关
type memGateway struct {
	mu       sync.Mutex
	created  int
	statuses map[string]string
}

func newMemGateway() *memGateway {
	return &memGateway{statuses: make(map[string]string)}
}

func (g *memGateway) CreatePayment(ctx context.Context, amount float64, currency, description, email string) (*yookassa.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	id := fmt.Sprintf("yk-%d", g.created)
	g.statuses[id] = "pending"
	return &yookassa.Payment{
		ID:     id,
		Status: "pending",
		Confirmation: &yookassa.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://pay.example.com/" + id,
		},
	}, nil
}

func (g *memGateway) GetPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[paymentID]
	if !ok {
		return nil, fmt.Errorf("unknown payment %s", paymentID)
	}
	return &yookassa.Payment{ID: paymentID, Status: status}, nil
}
