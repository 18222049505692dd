package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// Payment 网关侧的支付对象
type Payment struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Paid         bool          `json:"paid"`
	Amount       Amount        `json:"amount"`
	Description  string        `json:"description,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ConfirmationURL string `json:"confirmation_url"`
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createRequest struct {
	Amount       Amount                 `json:"amount"`
	Capture      bool                   `json:"capture"`
	Confirmation map[string]string      `json:"confirmation"`
	Description  string                 `json:"description,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Receipt      *receipt               `json:"receipt,omitempty"`
}

type receipt struct {
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Items []receiptItem `json:"items"`
}

type receiptItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Amount      Amount `json:"amount"`
	VATCode     int    `json:"vat_code"`
}

// Client YooKassa HTTP 客户端
type Client struct {
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
	http      *http.Client
}

func NewClient(shopID, secretKey, returnURL string) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL 覆盖网关地址（测试用）
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// CreatePayment 创建支付。每次调用生成新的幂等键，
// 网关侧保证同键重试返回同一笔支付。
func (c *Client) CreatePayment(ctx context.Context, amount float64, currency, description, customerEmail string) (*Payment, error) {
	req := createRequest{
		Amount: Amount{
			Value:    fmt.Sprintf("%.2f", amount),
			Currency: currency,
		},
		Capture: true,
		Confirmation: map[string]string{
			"type":       "redirect",
			"return_url": c.returnURL,
		},
		Description: description,
	}

	if customerEmail != "" {
		r := &receipt{}
		r.Customer.Email = customerEmail
		r.Items = []receiptItem{{
			Description: description,
			Quantity:    "1",
			Amount:      req.Amount,
			VATCode:     1,
		}}
		req.Receipt = r
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.shopID, c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())

	return c.do(httpReq)
}

// GetPayment 查询支付状态
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.shopID, c.secretKey)

	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yookassa api error (%d): %s", resp.StatusCode, string(body))
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("failed to decode payment: %w", err)
	}

	return &payment, nil
}
