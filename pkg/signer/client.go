package signer

import (
	"context"
	"fmt"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/go-resty/resty/v2"
)

// interface guard ensures Client implements bork.Signer
var _ bork.Signer = &Client{}

// Client calls the external signing service, which holds the wallet key.
type Client struct {
	client  *resty.Client
	network string
}

func NewClient(conf bork.Config) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(conf.Signer.URL).
			SetAuthToken(conf.Signer.Token).
			SetTimeout(60 * time.Second),
		network: conf.Signer.Network,
	}
}

type signRequest struct {
	bork.SignRequest
	Network string `json:"network"`
}

type signError struct {
	Error string `json:"error"`
}

// BuildAndSign is never retried here: a repeated request could sign a
// second, different spend of the same inputs.
func (c *Client) BuildAndSign(ctx context.Context, req bork.SignRequest) (bork.SignResult, error) {
	var res bork.SignResult
	var failure signError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(signRequest{SignRequest: req, Network: c.network}).
		SetResult(&res).
		SetError(&failure).
		Post("/sign")
	if err != nil {
		return bork.SignResult{}, err
	}
	if resp.IsError() {
		if failure.Error != "" {
			return bork.SignResult{}, fmt.Errorf("signer: %s: %s", resp.Status(), failure.Error)
		}
		return bork.SignResult{}, fmt.Errorf("signer: unexpected status: %s", resp.Status())
	}
	return res, nil
}
