// Package resources is a thin typed client for the backend's per-resource
// CRUD endpoints. Every endpoint wraps its payload in a
// {success, data?|error?} envelope; this package unwraps it and reuses
// the executor's retry and error handling.
package resources

import (
	"context"

	"github.com/jrsteele09/go-auth-client/client"
)

// Resource names as they appear in the URL.
const (
	Users       = "users"
	Courses     = "courses"
	Enrollments = "enrollments"
	Schedules   = "schedules"
	DataAssets  = "data-assets"
	Datasets    = "datasets"
	Dashboards  = "dashboards"
	Projects    = "projects"
	AIChats     = "ai-chats"
	Demos       = "demos"
)

// Envelope is the wire wrapper shared by every CRUD endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// List fetches all records of a resource.
func List[T any](ctx context.Context, c *client.Client, resource string) ([]T, error) {
	envelope := Envelope[[]T]{}
	response, err := c.Get(ctx, "/"+resource, &envelope, nil)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(envelope.Success, envelope.Error, response); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// Get fetches one record by ID.
func Get[T any](ctx context.Context, c *client.Client, resource, id string) (T, error) {
	envelope := Envelope[T]{}
	response, err := c.Get(ctx, "/"+resource+"/"+id, &envelope, nil)
	if err != nil {
		return envelope.Data, err
	}
	if err := checkEnvelope(envelope.Success, envelope.Error, response); err != nil {
		return envelope.Data, err
	}
	return envelope.Data, nil
}

// Create inserts a record and returns the stored representation.
func Create[T any](ctx context.Context, c *client.Client, resource string, payload any) (T, error) {
	envelope := Envelope[T]{}
	response, err := c.Post(ctx, "/"+resource, payload, &envelope, nil)
	if err != nil {
		return envelope.Data, err
	}
	if err := checkEnvelope(envelope.Success, envelope.Error, response); err != nil {
		return envelope.Data, err
	}
	return envelope.Data, nil
}

// Update replaces a record by ID and returns the stored representation.
func Update[T any](ctx context.Context, c *client.Client, resource, id string, payload any) (T, error) {
	envelope := Envelope[T]{}
	response, err := c.Put(ctx, "/"+resource+"/"+id, payload, &envelope, nil)
	if err != nil {
		return envelope.Data, err
	}
	if err := checkEnvelope(envelope.Success, envelope.Error, response); err != nil {
		return envelope.Data, err
	}
	return envelope.Data, nil
}

// Delete removes a record by ID.
func Delete(ctx context.Context, c *client.Client, resource, id string) error {
	envelope := Envelope[struct{}]{}
	response, err := c.Delete(ctx, "/"+resource+"/"+id, &envelope, nil)
	if err != nil {
		return err
	}
	return checkEnvelope(envelope.Success, envelope.Error, response)
}

// checkEnvelope guards against a 2xx response whose envelope still
// reports failure.
func checkEnvelope(success bool, message string, response *client.Response) error {
	if success || response.NoContent {
		return nil
	}
	if message == "" {
		message = "request failed"
	}
	return &client.APIError{Status: response.StatusCode, Message: message}
}
