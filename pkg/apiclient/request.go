package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

const apiPrefix = "/api/v1"

func regionPath(id int64, sub string) string {
	if sub == "" {
		return fmt.Sprintf("%s/regions/%d", apiPrefix, id)
	}
	return fmt.Sprintf("%s/regions/%d/%s", apiPrefix, id, sub)
}

// send runs a request without a response body.
func (c *Client) send(method, path string, in any) error {
	return unwrapPermanent(c.call(context.Background(), method, path, in, nil))
}

// query runs a request whose answer decodes into a T.
func query[T any](c *Client, method, path string, in any) (*T, error) {
	var out T
	if err := c.call(context.Background(), method, path, in, &out); err != nil {
		return nil, unwrapPermanent(err)
	}
	return &out, nil
}

func get[T any](c *Client, path string) (*T, error) {
	return query[T](c, http.MethodGet, path, nil)
}
