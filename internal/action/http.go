package action

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// HTTPAction issues an HTTP request described by node parameters:
//
//	url     (text, required)
//	method  (text, default GET)
//	headers (object of text)
//	query   (object of text)
//	body    (any, JSON-encoded when present)
//
// When the input carries credentials, the first access token is attached
// as an Authorization header. The output is an object with status, body
// and headers; a JSON response body is decoded, anything else stays text.
type HTTPAction struct {
	id     types.ActionID
	client *resty.Client
}

// HTTPOption configures an HTTPAction.
type HTTPOption func(*HTTPAction)

// WithClient substitutes the resty client, used by tests and callers
// needing custom transports.
func WithClient(client *resty.Client) HTTPOption {
	return func(a *HTTPAction) { a.client = client }
}

// NewHTTPAction builds the action under the given id.
func NewHTTPAction(id types.ActionID, opts ...HTTPOption) *HTTPAction {
	a := &HTTPAction{id: id, client: resty.New()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *HTTPAction) ID() types.ActionID { return a.id }
func (a *HTTPAction) Name() types.Key    { return "http_request" }

func (a *HTTPAction) Execute(ctx context.Context, in Input) (value.Value, error) {
	url := in.TextParam("url", "")
	if url == "" {
		return value.Value{}, types.NewError(types.INVALID_INPUT, "http action requires a url parameter")
	}
	method := strings.ToUpper(in.TextParam("method", "GET"))

	req := a.sessionClient(in).R().SetContext(ctx)

	if headers, err := in.Param("headers").AsObject(); err == nil {
		for name, hv := range headers {
			req.SetHeader(name, hv.String())
		}
	}
	if query, err := in.Param("query").AsObject(); err == nil {
		for name, qv := range query {
			req.SetQueryParam(name, qv.String())
		}
	}
	if body := in.Param("body"); !body.IsNull() {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body.ToAny())
	}
	for _, token := range in.Credentials {
		scheme := token.TokenType
		if scheme == "" {
			scheme = "Bearer"
		}
		req.SetHeader("Authorization", scheme+" "+token.Secret.Expose())
		break
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		if ctx.Err() != nil {
			return value.Value{}, types.WrapError(types.CANCELLED, "http request cancelled", err)
		}
		return value.Value{}, types.WrapRetryableError(types.CONNECTOR_FAILED, "http request failed", err)
	}

	out, err := responseValue(resp)
	if err != nil {
		return value.Value{}, err
	}

	status := resp.StatusCode()
	switch {
	case status == 401:
		return value.Value{}, types.NewRetryableError(types.AUTHENTICATION_FAILED,
			"http request rejected: 401 unauthorized")
	case status == 403:
		return value.Value{}, types.NewError(types.AUTHORIZATION_FAILED,
			"http request rejected: 403 forbidden")
	case status == 429 || status >= 500:
		return value.Value{}, types.NewRetryableError(types.CONNECTOR_FAILED,
			fmt.Sprintf("http request failed with status %d", status))
	case status >= 400:
		return value.Value{}, types.NewErrorf(types.CONNECTOR_FAILED,
			"http request failed with status %d", status)
	}
	return out, nil
}

// sessionClient prefers a pooled HTTPSession loaned to the activation
// over the action's own client.
func (a *HTTPAction) sessionClient(in Input) *resty.Client {
	for _, guard := range in.Resources {
		if session, ok := guard.Resource().(*HTTPSession); ok {
			return session.Client()
		}
	}
	return a.client
}

func responseValue(resp *resty.Response) (value.Value, error) {
	raw := resp.Body()

	var body value.Value
	var decoded any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		v, err := value.FromAny(decoded)
		if err != nil {
			return value.Value{}, err
		}
		body = v
	} else {
		v, err := value.Text(string(raw))
		if err != nil {
			return value.Value{}, err
		}
		body = v
	}

	headers := make(map[string]value.Value, len(resp.Header()))
	for name, vals := range resp.Header() {
		hv, err := value.Text(strings.Join(vals, ", "))
		if err != nil {
			return value.Value{}, err
		}
		headers[name] = hv
	}
	headerObj, err := value.Object(headers)
	if err != nil {
		return value.Value{}, err
	}

	return value.Object(map[string]value.Value{
		"status":  value.Int(int64(resp.StatusCode())),
		"body":    body,
		"headers": headerObj,
	})
}
