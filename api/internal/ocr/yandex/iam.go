package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const iamTokensURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// IamClient обменивает OAuth-токен на IAM-токен и кэширует его ~11 ч.
type IamClient struct {
	httpc  *http.Client
	url    string
	oauth  string
	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

func NewIamClient(oauth string) *IamClient {
	return &IamClient{
		httpc: &http.Client{Timeout: 20 * time.Second},
		url:   iamTokensURL,
		oauth: oauth,
		now:   time.Now,
	}
}

func (c *IamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-time.Minute)) {
		return c.token, nil
	}

	b, err := json.Marshal(map[string]string{"yandexPassportOauthToken": c.oauth})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("iam %d: %s", resp.StatusCode, string(x))
	}

	var out struct {
		IamToken string `json:"iamToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("iam: decode: %w", err)
	}
	if out.IamToken == "" {
		return "", fmt.Errorf("iam: empty token")
	}
	c.token = out.IamToken
	c.expiry = c.now().Add(11 * time.Hour)
	return c.token, nil
}

// Invalidate drops the cached token so the next Token call fetches a new one.
func (c *IamClient) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
