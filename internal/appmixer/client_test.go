package appmixer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/standardbeagle/appmixer-mcp/internal/auth"
	"github.com/standardbeagle/appmixer-mcp/internal/logging"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	CType  string
	Body   string
}

// platform is a fake Appmixer API that records requests.
type platform struct {
	*httptest.Server
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	p := &platform{routes: map[string]http.HandlerFunc{}}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		p.requests = append(p.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			CType:  r.Header.Get("Content-Type"),
			Body:   string(body),
		})
		if h, ok := p.routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *platform) handle(pattern string, status int, body string) {
	p.routes[pattern] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (p *platform) last() recordedRequest {
	return p.requests[len(p.requests)-1]
}

func newTestClient(p *platform) *Client {
	return NewClient(Options{
		BaseURL:     p.URL + "/",
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		Logger:      logging.Nop(),
	})
}

func TestCall_JSONAndText(t *testing.T) {
	p := newPlatform(t)
	p.handle("GET /json", http.StatusOK, `{"ok":true}`)
	p.handle("GET /text", http.StatusOK, "plain words")
	p.handle("GET /empty", http.StatusNoContent, "")
	c := newTestClient(p)

	v, err := c.Call(context.Background(), "/json", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, v)
	assert.Equal(t, "Bearer tok", p.last().Auth)
	assert.Empty(t, p.last().CType)

	v, err = c.Call(context.Background(), "text", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain words", v)

	v, err = c.Call(context.Background(), "/empty", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCall_SendsJSONBody(t *testing.T) {
	p := newPlatform(t)
	p.handle("POST /hook", http.StatusOK, `"done"`)
	c := newTestClient(p)

	v, err := c.Call(context.Background(), "/hook", http.MethodPost, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, "application/json", p.last().CType)
	assert.JSONEq(t, `{"a":1}`, p.last().Body)
}

func TestCall_AbsoluteTarget(t *testing.T) {
	p := newPlatform(t)
	other := newPlatform(t)
	other.handle("POST /webhook", http.StatusOK, `{}`)
	c := newTestClient(p)

	_, err := c.Call(context.Background(), other.URL+"/webhook", http.MethodPost, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, p.requests)
	require.Len(t, other.requests, 1)
	assert.Equal(t, "Bearer tok", other.last().Auth)
}

func TestCall_HTTPError(t *testing.T) {
	p := newPlatform(t)
	p.handle("GET /flows", http.StatusForbidden, "nope\n")
	c := newTestClient(p)

	_, err := c.Call(context.Background(), "/flows", http.MethodGet, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.Equal(t, p.URL+"/flows", httpErr.Target)
	assert.Equal(t, "nope", httpErr.Body)
	assert.Contains(t, err.Error(), "403")
}

func TestCall_AuthFailureSurfaces(t *testing.T) {
	p := newPlatform(t)
	p.handle("POST /user/auth", http.StatusUnauthorized, "")
	p.handle("GET /flows", http.StatusOK, "[]")

	mgr := auth.NewManager(auth.Options{BaseURL: p.URL, Username: "u", Password: "p", Logger: logging.Nop()})
	c := NewClient(Options{BaseURL: p.URL, Credentials: mgr, Logger: logging.Nop()})

	_, err := c.GetFlows(context.Background())

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	for _, r := range p.requests {
		assert.NotEqual(t, "/flows", r.Path, "request must not be sent without a credential")
	}
}

func TestCall_Timeout(t *testing.T) {
	p := newPlatform(t)
	p.routes["GET /slow"] = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}
	c := NewClient(Options{
		BaseURL:     p.URL,
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		Timeout:     20 * time.Millisecond,
		Logger:      logging.Nop(),
	})

	_, err := c.Call(context.Background(), "/slow", http.MethodGet, nil)
	require.Error(t, err)
	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestCall_HungLoginHonorsContextAndTimeout(t *testing.T) {
	release := make(chan struct{})
	p := newPlatform(t)
	t.Cleanup(func() { close(release) })
	p.routes["POST /user/auth"] = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}
	p.handle("GET /flows", http.StatusOK, "[]")

	mgr := auth.NewManager(auth.Options{BaseURL: p.URL, Username: "u", Password: "p", Logger: logging.Nop()})

	t.Run("request timeout", func(t *testing.T) {
		c := NewClient(Options{BaseURL: p.URL, Credentials: mgr, Timeout: 50 * time.Millisecond, Logger: logging.Nop()})

		start := time.Now()
		_, err := c.Call(context.Background(), "/flows", http.MethodGet, nil)
		assert.Less(t, time.Since(start), time.Second)

		var authErr *auth.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("caller deadline", func(t *testing.T) {
		c := NewClient(Options{BaseURL: p.URL, Credentials: mgr, Logger: logging.Nop()})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := c.Call(ctx, "/flows", http.MethodGet, nil)
		assert.Less(t, time.Since(start), time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestFlowOperations(t *testing.T) {
	p := newPlatform(t)
	p.handle("GET /flows", http.StatusOK, `[{"flowId":"f1","name":"One"},{"flowId":"f2","name":"Two"}]`)
	p.handle("GET /flows/f1", http.StatusOK, `{"flowId":"f1","name":"One","btime":1700000000000,"mtime":"2023-11-14T22:15:00Z","flow":{"a":1}}`)
	p.handle("DELETE /flows/f1", http.StatusOK, "")
	p.handle("POST /flows/f1/coordinator", http.StatusOK, "{}")
	c := newTestClient(p)
	ctx := context.Background()

	flows, err := c.GetFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "f2", flows[1].FlowID)

	flow, err := c.GetFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, Millis(1700000000000), flow.BTime)
	assert.Equal(t, Millis(1700000100000), flow.MTime)
	assert.JSONEq(t, `{"a":1}`, string(flow.Flow))

	require.NoError(t, c.DeleteFlow(ctx, "f1"))
	assert.Equal(t, http.MethodDelete, p.last().Method)

	require.NoError(t, c.StartFlow(ctx, "f1"))
	assert.JSONEq(t, `{"command":"start"}`, p.last().Body)

	require.NoError(t, c.StopFlow(ctx, "f1"))
	assert.JSONEq(t, `{"command":"stop"}`, p.last().Body)
}

func TestGetFlow_EscapesID(t *testing.T) {
	p := newPlatform(t)
	c := newTestClient(p)

	_, _ = c.GetFlow(context.Background(), "a/b")
	assert.Equal(t, "/flows/a%2Fb", p.last().Path)
}

func TestGetFlows_ParseError(t *testing.T) {
	p := newPlatform(t)
	p.handle("GET /flows", http.StatusOK, "maintenance")
	c := newTestClient(p)

	_, err := c.GetFlows(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, p.URL+"/flows", parseErr.Target)
}

func TestTriggerComponent(t *testing.T) {
	p := newPlatform(t)
	p.handle("POST /flows/f1/components/c1", http.StatusOK, `{"received":true}`)
	p.handle("PUT /flows/f1/components/c1", http.StatusOK, "")
	c := newTestClient(p)
	ctx := context.Background()

	v, err := c.TriggerComponent(ctx, "f1", "c1", "", `{"x":2}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"received": true}, v)
	assert.JSONEq(t, `{"x":2}`, p.last().Body)

	v, err = c.TriggerComponent(ctx, "f1", "c1", "put", "")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, http.MethodPut, p.last().Method)
	assert.JSONEq(t, `{}`, p.last().Body)

	n := len(p.requests)
	_, err = c.TriggerComponent(ctx, "f1", "c1", "", "{broken")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Len(t, p.requests, n, "invalid body must not be sent")
}

func TestGetLogs(t *testing.T) {
	p := newPlatform(t)
	p.handle("GET /logs", http.StatusOK, `{"hits":[{"@timestamp":"2024-01-01T00:00:00Z","severity":"info","msg":"hello","inputMessages":{"in":[1]}}]}`)
	c := newTestClient(p)

	logs, err := c.GetLogs(context.Background(), "f1", `msg:"a b"`)
	require.NoError(t, err)
	require.Len(t, logs.Hits, 1)
	assert.Equal(t, LogValue("hello"), logs.Hits[0].Msg)
	assert.Equal(t, LogValue("2024-01-01T00:00:00Z"), logs.Hits[0].Timestamp)
	assert.Equal(t, "flowId=f1&query=msg%3A%22a+b%22", p.last().Query)

	_, err = c.GetLogs(context.Background(), "f1", "")
	require.NoError(t, err)
	assert.Equal(t, "flowId=f1", p.last().Query)
}

func TestGetLogs_NonStringFields(t *testing.T) {
	p := newPlatform(t)
	p.handle("GET /logs", http.StatusOK, `{"hits":[{"msg":{"error": "boom"},"port":3,"severity":null,"senderId":true}]}`)
	c := newTestClient(p)

	logs, err := c.GetLogs(context.Background(), "f1", "")
	require.NoError(t, err)
	require.Len(t, logs.Hits, 1)
	hit := logs.Hits[0]
	assert.Equal(t, LogValue(`{"error":"boom"}`), hit.Msg)
	assert.Equal(t, LogValue("3"), hit.Port)
	assert.Equal(t, LogValue(""), hit.Severity)
	assert.Equal(t, LogValue("true"), hit.SenderID)
}

func TestGetGateways(t *testing.T) {
	p := newPlatform(t)
	gateways := []map[string]any{{
		"webhook": "https://hooks.example/g1",
		"tools": []map[string]any{{
			"function": map[string]any{
				"name":        "slack_send",
				"description": "Send a message",
				"parameters":  map[string]any{"type": "object"},
			},
		}},
	}}
	body, err := json.Marshal(gateways)
	require.NoError(t, err)
	p.handle("GET "+GatewaysPath, http.StatusOK, string(body))
	c := newTestClient(p)

	got, err := c.GetGateways(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://hooks.example/g1", got[0].Webhook)
	assert.Equal(t, "slack_send", got[0].Tools[0].Function.Name)
	assert.JSONEq(t, `{"type":"object"}`, string(got[0].Tools[0].Function.Parameters))
}

func TestMillis(t *testing.T) {
	tests := []struct {
		in   string
		want Millis
		err  bool
	}{
		{`1700000000000`, 1700000000000, false},
		{`"1700000000000"`, 1700000000000, false},
		{`"2023-11-14T22:13:20Z"`, 1700000000000, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"yesterday"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m Millis
			err := json.Unmarshal([]byte(tt.in), &m)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}
