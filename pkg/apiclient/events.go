package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/offlinekit/pkg/notify"
)

// Events streams region events until ctx ends or the server closes the
// stream. A regionID of 0 streams every region.
func (c *Client) Events(ctx context.Context, regionID int64) (<-chan notify.Event, error) {
	path := apiPrefix + "/events"
	if regionID != 0 {
		path = regionPath(regionID, "events")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", userAgent)

	// The stream has no overall deadline.
	client := &http.Client{Transport: c.http.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return nil, parseProblem(resp.StatusCode, body)
	}

	events := make(chan notify.Event)
	go func() {
		defer close(events)
		defer func() { _ = resp.Body.Close() }()
		readEvents(ctx, resp.Body, events)
	}()
	return events, nil
}

// readEvents parses the data lines of a server-sent event stream.
func readEvents(ctx context.Context, r io.Reader, out chan<- notify.Event) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev notify.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
