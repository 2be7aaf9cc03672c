package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

// ServerClient is the payment server surface the orchestrator depends on.
type ServerClient interface {
	InitiatePayment(ctx context.Context, tokenID string, action types.PaymentAction) (*types.InitiateQuote, error)
	RegisterVerification(ctx context.Context, txHash, tokenID string, action types.PaymentAction) (string, error)
	PollStatus(ctx context.Context, paymentID string) (*types.VerificationStatus, error)
}

// HTTPServerClient talks to the arcadepayd HTTP API.
type HTTPServerClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPServerClient(baseURL string) *HTTPServerClient {
	return &HTTPServerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type initiateRequest struct {
	TokenID string `json:"tokenId"`
	Action  string `json:"action"`
}

type initiateResponse struct {
	ContractAddress string `json:"contractAddress"`
	TokenAddress    string `json:"tokenAddress"`
	Amount          string `json:"amount"`
	AmountFormatted string `json:"amountFormatted"`
	ChainID         int64  `json:"chainId"`
}

func (c *HTTPServerClient) InitiatePayment(ctx context.Context, tokenID string, action types.PaymentAction) (*types.InitiateQuote, error) {
	var resp initiateResponse
	err := c.post(ctx, "/payments/initiate", initiateRequest{TokenID: tokenID, Action: action.String()}, &resp)
	if err != nil {
		return nil, types.NewArcadeError(types.ErrPriceFetch, "price lookup failed: "+err.Error())
	}

	amount, ok := new(big.Int).SetString(resp.Amount, 10)
	if !ok {
		return nil, types.NewArcadeError(types.ErrPriceFetch, "server returned a malformed amount")
	}
	return &types.InitiateQuote{
		ContractAddress: resp.ContractAddress,
		TokenAddress:    resp.TokenAddress,
		Amount:          amount,
		AmountFormatted: resp.AmountFormatted,
		ChainID:         resp.ChainID,
	}, nil
}

type verifyRequest struct {
	TransactionHash string `json:"transactionHash"`
	TokenID         string `json:"tokenId"`
	Action          string `json:"action"`
}

type verifyResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

func (c *HTTPServerClient) RegisterVerification(ctx context.Context, txHash, tokenID string, action types.PaymentAction) (string, error) {
	var resp verifyResponse
	err := c.post(ctx, "/payments/verify", verifyRequest{
		TransactionHash: txHash,
		TokenID:         tokenID,
		Action:          action.String(),
	}, &resp)
	if err != nil {
		return "", types.NewArcadeError(types.ErrVerification, "verification registration failed: "+err.Error())
	}
	return resp.PaymentID, nil
}

type statusResponse struct {
	PaymentID       string     `json:"paymentId"`
	TransactionHash string     `json:"transactionHash"`
	Status          string     `json:"status"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
}

func (c *HTTPServerClient) PollStatus(ctx context.Context, paymentID string) (*types.VerificationStatus, error) {
	endpoint := c.baseURL + "/payments/verify?paymentId=" + url.QueryEscape(paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewArcadeError(types.ErrNetwork, err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, types.NewArcadeError(types.ErrRecordNotFound, "payment record not found")
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, types.NewArcadeError(types.ErrVerification, fmt.Sprintf("status poll returned %d", httpResp.StatusCode))
	}

	var resp statusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return &types.VerificationStatus{
		PaymentID:       resp.PaymentID,
		TransactionHash: resp.TransactionHash,
		Status:          types.PaymentStatus(resp.Status),
		VerifiedAt:      resp.VerifiedAt,
	}, nil
}

func (c *HTTPServerClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
