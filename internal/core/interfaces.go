package core

import (
	"context"
	"fmt"
	"net/http"
)

// Request is one call against the locus or meeting-info services. Body is
// marshalled as JSON when non-nil.
type Request struct {
	Method string
	URL    string
	Body   any
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks . Transport,LogUploader

// Transport abstracts the REST client. Implementations return *StatusError
// for any non-2xx reply so callers can classify the body.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: status %d", e.StatusCode)
}

// LogUploader ships client logs after a failure that needs investigation.
type LogUploader interface {
	UploadLogs(ctx context.Context, meta map[string]string) error
}
