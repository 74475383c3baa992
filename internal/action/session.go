package action

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/vanyastaff/nebula-sub011/internal/resource"
)

// HTTPSession is a poolable HTTP client handle. Pooling the client keeps
// its transport's connection cache warm across activations instead of
// redialing per node.
type HTTPSession struct {
	id     string
	client *resty.Client
}

// NewHTTPSessionFactory builds sessions for a resource pool. Each option
// is applied to every client the factory creates.
func NewHTTPSessionFactory(configure ...func(*resty.Client)) resource.FactoryFunc {
	return func(ctx context.Context) (resource.Resource, error) {
		client := resty.New()
		for _, fn := range configure {
			fn(client)
		}
		return &HTTPSession{id: uuid.NewString(), client: client}, nil
	}
}

// Client returns the underlying resty client.
func (s *HTTPSession) Client() *resty.Client { return s.client }

func (s *HTTPSession) ID() string { return s.id }

// IsValid always passes: the client holds no connection state that can
// go stale, only a reusable transport.
func (s *HTTPSession) IsValid(ctx context.Context) (bool, error) { return true, nil }

// Close drops the transport's idle connections.
func (s *HTTPSession) Close(ctx context.Context) error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}
