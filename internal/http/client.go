package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = time.Second * 5

// RelayQueueClient provides high level methods to work with the relay queue webserver api
type RelayQueueClient struct {
	host   *url.URL
	client http.Client
}

// NewRelayQueueClient takes a host as a single argument and returns a RelayQueueClient in case of well formatted host arg
// host format is <scheme>://<host>[:<port>], e.g. http://relay.host, https://relay.host, http://relay.host:9999
func NewRelayQueueClient(host string) (*RelayQueueClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("host parsing error: %w", err)
	}

	u.Path = ""
	u.RawQuery = ""
	return &RelayQueueClient{
		host: u,
		client: http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

func (c RelayQueueClient) GetPending(address string) (*PendingView, error) {
	var res PendingResponse
	if err := c.do(http.MethodGet, resourcePath(PendingResource, "{address}", address), &res); err != nil {
		return nil, err
	}
	return res.Pending, nil
}

func (c RelayQueueClient) GetOutcome(address, nonce string) (*OutcomeView, error) {
	var res OutcomeResponse
	path := resourcePath(OutcomeResource, "{address}", address, "{nonce}", nonce)
	if err := c.do(http.MethodGet, path, &res); err != nil {
		return nil, err
	}
	return res.Outcome, nil
}

func (c RelayQueueClient) CancelPending(address, signature string) error {
	var res ResultResponse
	path := resourcePath(CancelResource, "{address}", address, "{signature}", signature)
	return c.do(http.MethodDelete, path, &res)
}

func (c RelayQueueClient) do(method, path string, out interface{}) error {
	u := *c.host
	u.Path = path

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make http request: %w", err)
	}
	defer res.Body.Close()

	decoder := json.NewDecoder(res.Body)
	if res.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if err := decoder.Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("got http response status code %d: %s", res.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("got unexpected http response status code: %d", res.StatusCode)
	}

	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func resourcePath(resource string, oldnew ...string) string {
	for i := range oldnew {
		if i%2 == 1 {
			oldnew[i] = url.PathEscape(oldnew[i])
		}
	}
	return strings.NewReplacer(oldnew...).Replace(resource)
}
