package gasnet

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quic-go/quic-go/http3"
	"github.com/wnxd/schedscope/gas"
)

// Client reads memory of one remote locality through its agent.
type Client struct {
	base string
	hc   *http.Client
}

// Dial returns a client talking HTTP/3 to the agent at addr. Transfers have
// no deadline of their own; they end when the caller's context does.
func Dial(addr string, tlsCfg *tls.Config) *Client {
	tr := &http3.Transport{TLSClientConfig: tlsCfg}
	return &Client{base: "https://" + addr, hc: &http.Client{Transport: tr}}
}

// NewClient uses hc against baseURL, e.g. for plain HTTP agents.
func NewClient(baseURL string, hc *http.Client) *Client {
	return &Client{base: strings.TrimSuffix(baseURL, "/"), hc: hc}
}

func (c *Client) Close() error {
	if tr, ok := c.hc.Transport.(*http3.Transport); ok {
		return tr.Close()
	}
	return nil
}

func (c *Client) Transfer(ctx context.Context, dst []byte, gva uint64) error {
	url := fmt.Sprintf("%s%s?addr=%x&size=%d", c.base, MemoryPath, gva, len(dst))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", gas.ErrTransferFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: agent %s: %s: %s", gas.ErrTransferFailed, c.base, resp.Status, strings.TrimSpace(string(msg)))
	}
	if n, err := io.ReadFull(resp.Body, dst); err != nil {
		return fmt.Errorf("%w: agent %s: got %d of %d bytes", gas.ErrTransferFailed, c.base, n, len(dst))
	}
	return nil
}
