package action

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/resource"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

func TestHTTPSessionFactory(t *testing.T) {
	factory := NewHTTPSessionFactory()
	res, err := factory.Create(context.Background())
	require.NoError(t, err)

	session, ok := res.(*HTTPSession)
	require.True(t, ok)
	assert.NotEmpty(t, session.ID())
	assert.NotNil(t, session.Client())

	valid, err := session.IsValid(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	require.NoError(t, session.Close(context.Background()))
}

func TestHTTPActionUsesPooledSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pooled": true}`))
	}))
	defer srv.Close()

	pool, err := resource.NewPool(NewHTTPSessionFactory(), resource.PoolConfig{
		MaxSize:        2,
		AcquireTimeout: types.Duration(time.Second),
	})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	guard, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer guard.Release(context.Background())

	urlParam, err := value.Text(srv.URL)
	require.NoError(t, err)

	a := NewHTTPAction(HTTPID, WithClient(nil))
	out, err := a.Execute(context.Background(), Input{
		Parameters: map[types.Key]value.Value{"url": urlParam},
		Resources:  map[types.Key]*resource.Guard{"http_client": guard},
	})
	require.NoError(t, err)

	obj, err := out.AsObject()
	require.NoError(t, err)
	body, err := obj["body"].AsObject()
	require.NoError(t, err)
	pooled, err := body["pooled"].AsBool()
	require.NoError(t, err)
	assert.True(t, pooled)
}
