package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Client talks to the ledger-ner REST service.
type Client struct {
	client *resty.Client
}

// NewClient returns a client for the service at baseURL, which should include
// the /api/v1 prefix.
func NewClient(baseURL string) *Client {
	return &Client{client: resty.New().SetBaseURL(baseURL)}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req = req.SetBody(body)
	}
	if result != nil {
		req = req.SetResult(result)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("error sending %s %s: %w", method, path, err)
	}
	if res.IsError() {
		return fmt.Errorf("%s %s returned %d: %s", method, path, res.StatusCode(), res.String())
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, resty.MethodGet, "/health", nil, nil)
}

func (c *Client) SubmitRun(ctx context.Context, req TrainRequest) (uuid.UUID, error) {
	var res TrainResponse
	if err := c.do(ctx, resty.MethodPost, "/runs", req, &res); err != nil {
		return uuid.Nil, err
	}
	return res.RunId, nil
}

func (c *Client) ListRuns(ctx context.Context, params ListRunsParams) ([]Run, error) {
	req := c.client.R().SetContext(ctx).SetResult(&[]Run{})
	if params.Status != "" {
		req.SetQueryParam("status", params.Status)
	}
	if params.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(params.Limit))
	}

	res, err := req.Get("/runs")
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET /runs returned %d: %s", res.StatusCode(), res.String())
	}
	return *res.Result().(*[]Run), nil
}

func (c *Client) GetRun(ctx context.Context, runId uuid.UUID) (Run, error) {
	var run Run
	err := c.do(ctx, resty.MethodGet, "/runs/"+runId.String(), nil, &run)
	return run, err
}

// GetModel returns the raw exported model document of a completed run.
func (c *Client) GetModel(ctx context.Context, runId uuid.UUID) ([]byte, error) {
	res, err := c.client.R().SetContext(ctx).Get("/runs/" + runId.String() + "/model")
	if err != nil {
		return nil, fmt.Errorf("error downloading model: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET model returned %d: %s", res.StatusCode(), res.String())
	}
	return res.Body(), nil
}

func (c *Client) Tag(ctx context.Context, runId uuid.UUID, texts ...string) ([]TagResult, error) {
	var res TagResponse
	if err := c.do(ctx, resty.MethodPost, "/runs/"+runId.String()+"/tag", TagRequest{Texts: texts}, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}
