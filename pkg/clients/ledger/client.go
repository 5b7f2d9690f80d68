package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/epochledger/epochledger/pkg/service/types"
	"go.uber.org/zap"
)

var backoffSchedule = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	10 * time.Second,
}

// Client reads published epochs from a ledger node's public API.
type Client struct {
	httpClient *http.Client
	baseUrl    string
	Logger     *zap.Logger
}

// ResponseError is returned for any non-200 response.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("response status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

func NewClient(hc *http.Client, baseUrl string, l *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		httpClient: hc,
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		Logger:     l,
	}
}

func (c *Client) makeRequest(ctx context.Context, path string, values url.Values, out any) error {
	fullUrl := c.baseUrl + path
	if len(values) > 0 {
		fullUrl = fmt.Sprintf("%s?%s", fullUrl, values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.Logger.Sugar().Errorw("Failed to perform ledger request", zap.String("url", fullUrl), zap.Error(err))
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode != http.StatusOK {
		eb := &errorBody{}
		_ = json.Unmarshal(body, eb)
		return &ResponseError{StatusCode: res.StatusCode, Message: eb.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.Logger.Sugar().Errorw("Failed to parse ledger response", zap.String("url", fullUrl), zap.Error(err))
		return err
	}
	return nil
}

// makeRequestWithBackoff retries transport failures and 5xx responses. Client errors return immediately.
func (c *Client) makeRequestWithBackoff(ctx context.Context, path string, values url.Values, out any) error {
	var err error
	for _, backoff := range backoffSchedule {
		err = c.makeRequest(ctx, path, values, out)
		if err == nil {
			return nil
		}
		var re *ResponseError
		if errors.As(err, &re) && re.StatusCode < http.StatusInternalServerError {
			return err
		}

		c.Logger.Sugar().Infow("Ledger request failed, backing off",
			zap.String("path", path),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed to make ledger request after backoff: %w", err)
}

func (c *Client) ListEpochs(ctx context.Context, limit int, offset int) (*types.ListEpochsResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}
	res := &types.ListEpochsResponse{}
	if err := c.makeRequestWithBackoff(ctx, "/ledger/epochs", values, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetAllocations(ctx context.Context, epochId uint64) (*types.EpochAllocationsResponse, error) {
	res := &types.EpochAllocationsResponse{}
	if err := c.makeRequestWithBackoff(ctx, fmt.Sprintf("/ledger/epochs/%d/allocations", epochId), nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetStatement(ctx context.Context, epochId uint64) (*types.EpochStatementResponse, error) {
	res := &types.EpochStatementResponse{}
	if err := c.makeRequestWithBackoff(ctx, fmt.Sprintf("/ledger/epochs/%d/statement", epochId), nil, res); err != nil {
		return nil, err
	}
	return res, nil
}
