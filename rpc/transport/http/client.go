package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("http transport needs at least one endpoint")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		server = strings.TrimSpace(server)
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second
	t.client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     timeout,
		},
	}
	t.serverURLs = parsedURLs
	t.retryCount = max(1, config.RetryCount)

	return nil
}

func (t *httpClientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Select the next server via round-robin
	idx := t.counter.Add(1) % uint32(len(t.serverURLs))
	requestURL := t.serverURLs[idx].JoinPath(fmt.Sprintf("%d", shardId)).String()

	for attempt := 0; attempt < t.retryCount; attempt++ {
		resp, err = t.send(requestURL, req)
		if err == nil {
			return resp, nil
		}
		Logger.Debugf("request to %s failed (attempt %d/%d): %v", requestURL, attempt+1, t.retryCount, err)
	}
	return nil, err
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	t.client = nil
	t.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send performs a single request, the body is recreated for each attempt
func (t *httpClientTransport) send(requestURL string, req []byte) ([]byte, error) {
	httpResponse, err := t.client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}
	return io.ReadAll(httpResponse.Body)
}
