// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRemoteNotFound means the expected file is not published upstream. It is
// a valid negative result: the executor falls back to an older run instead
// of recording a failure.
var ErrRemoteNotFound = errors.New("remote file not found")

// Fetcher retrieves the raw bytes of a remote URL. Implementations must
// return ErrRemoteNotFound (possibly wrapped) on HTTP 404.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches over plain HTTP GET, the only transport the open-data
// archives expose. No authentication.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, url)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: server responded with %s", url, resp.Status)
	}
}
