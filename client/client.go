// Package client talks to the HTTP API of an apicheck monitor.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vianscientific/apicheck/internal/model"
)

type SuiteRun = model.SuiteRun
type TestRun = model.TestRun

type Client struct {
	http *http.Client
	host string
}

type RequestError struct {
	ResponseCode int
}

func (e RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.ResponseCode)
}

func New(host string, c *http.Client) Client {
	if c == nil {
		c = http.DefaultClient
	}

	return Client{http: c, host: strings.TrimRight(host, "/")}
}

// CreateRun queues a new run. An empty filter and no groups run all tests.
func (c Client) CreateRun(ctx context.Context, filter string, groups []string) (SuiteRun, error) {
	query := url.Values{}
	if filter != "" {
		query.Set("filter", filter)
	}
	for _, g := range groups {
		query.Add("group", g)
	}

	u := c.url("/runs")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return SuiteRun{}, err
	}

	var run SuiteRun

	if err = c.do(ctx, req, &run); err != nil {
		return SuiteRun{}, err
	}

	return run, nil
}

func (c Client) GetRun(ctx context.Context, runID int) (SuiteRun, error) {
	return c.getRun(ctx, c.url("/runs/"+strconv.Itoa(runID)))
}

func (c Client) LatestRun(ctx context.Context) (SuiteRun, error) {
	return c.getRun(ctx, c.url("/runs/latest"))
}

// WaitForRun polls the run until it is no longer pending or ctx is done.
func (c Client) WaitForRun(ctx context.Context, runID int, interval time.Duration) (SuiteRun, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return SuiteRun{}, err
		}

		if run.Result != model.ResultPending {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return SuiteRun{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c Client) getRun(ctx context.Context, u string) (SuiteRun, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return SuiteRun{}, err
	}

	var run SuiteRun

	if err = c.do(ctx, req, &run); err != nil {
		return SuiteRun{}, err
	}

	return run, nil
}

func (c Client) url(path string) string {
	return c.host + path
}

func (c Client) do(ctx context.Context, req *http.Request, body any) error {
	req = req.WithContext(ctx)
	req.Header.Add("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return RequestError{res.StatusCode}
	}

	if body != nil {
		d := json.NewDecoder(res.Body)

		if err = d.Decode(body); err != nil {
			return err
		}
	}

	return nil
}
