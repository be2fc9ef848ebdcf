// Package probe checks that the device can reach the outside network before
// discovery starts. The result is advisory: it gates the flow, nothing more.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lanrtc/common"

	"github.com/go-resty/resty/v2"
)

const DefaultURL = "https://www.google.com"

type Probe struct {
	URL    string
	client *resty.Client
}

func New(url string, timeout time.Duration) *Probe {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = common.DefaultTimeouts.Probe
	}
	return &Probe{
		URL:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

// Check performs a single request with no retry. Any failure is reported as
// common.ErrNetworkUnavailable with the reason attached.
func (p *Probe) Check(ctx context.Context) error {
	res, err := p.client.R().SetContext(ctx).Get(p.URL)
	if err != nil {
		slog.Warn("connectivity probe failed", "url", p.URL, "err", err)
		return fmt.Errorf("%w: %v", common.ErrNetworkUnavailable, err)
	}
	if res.IsError() {
		slog.Warn("connectivity probe failed", "url", p.URL, "status", res.Status())
		return fmt.Errorf("%w: %s returned %s", common.ErrNetworkUnavailable, p.URL, res.Status())
	}
	slog.Info("connectivity probe ok", "url", p.URL, "status", res.StatusCode())
	return nil
}
