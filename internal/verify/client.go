package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the transient outcome of one verification call. UserID is only
// set when the authority chose to return an identity.
type Result struct {
	OK     bool
	UserID string
}

// Authority authorises a token for a room. A returned error means the call
// itself failed (network, timeout); a clean rejection is Result{OK: false}.
type Authority interface {
	Check(ctx context.Context, roomID, token string) (Result, error)
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

var _ Authority = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Check asks the authority whether token may join roomID. The credential
// travels as a bearer token; the request body stays empty.
func (c *Client) Check(ctx context.Context, roomID, token string) (Result, error) {
	endpoint := fmt.Sprintf("%s/rooms/%s/participants/check",
		c.baseURL, url.PathEscape(roomID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verification call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{OK: false}, nil
	}

	// The identity in the response body is optional.
	var body struct {
		UserID string `json:"userId"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	return Result{OK: true, UserID: body.UserID}, nil
}
