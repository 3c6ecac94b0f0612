package feeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/go-resty/resty/v2"
)

// interface guard ensures Client implements bork.FeeSource
var _ bork.FeeSource = &Client{}

// Client fetches the latest fee rate table. The body is kept as-is; the
// FeeOracle extracts the rate it needs.
type Client struct {
	url    string
	client *resty.Client
	now    func() time.Time
}

func NewClient(conf bork.Config) *Client {
	return &Client{
		url: conf.Fees.URL,
		client: resty.New().
			SetTimeout(20*time.Second).
			SetRetryCount(2).
			SetHeader("Accept", "application/json"),
		now: time.Now,
	}
}

func (c *Client) LatestFeeEstimate(ctx context.Context) (bork.FeeEstimate, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return bork.FeeEstimate{}, err
	}
	if !resp.IsSuccess() {
		return bork.FeeEstimate{}, fmt.Errorf("fee estimate: unexpected status: %s", resp.Status())
	}
	if !json.Valid(resp.Body()) {
		return bork.FeeEstimate{}, fmt.Errorf("fee estimate: response is not JSON")
	}
	return bork.FeeEstimate{Captured: c.now(), Raw: string(resp.Body())}, nil
}
