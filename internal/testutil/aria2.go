package testutil

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// RPCError is a JSON-RPC error returned by a FakeEngine handler.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HandlerFunc answers one JSON-RPC method. params excludes the token.
type HandlerFunc func(params []json.RawMessage) (any, *RPCError)

// FakeEngine is an in-process aria2 JSON-RPC endpoint.
type FakeEngine struct {
	Server *httptest.Server
	Secret string

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    map[string]int
	failNext int
}

// NewFakeEngine starts a fake engine that requires "token:"+secret. It
// answers getGlobalOption, changeGlobalOption, forcePauseAll,
// purgeDownloadResult, tellActive and tellWaiting with empty results until
// overridden with Handle.
func NewFakeEngine(t testing.TB, secret string) *FakeEngine {
	t.Helper()

	f := &FakeEngine{
		Secret:   secret,
		handlers: make(map[string]HandlerFunc),
		calls:    make(map[string]int),
	}

	ok := func([]json.RawMessage) (any, *RPCError) { return "OK", nil }
	empty := func([]json.RawMessage) (any, *RPCError) { return []any{}, nil }
	f.handlers["aria2.getGlobalOption"] = func([]json.RawMessage) (any, *RPCError) {
		return map[string]string{"dir": "/tmp"}, nil
	}
	f.handlers["aria2.changeGlobalOption"] = ok
	f.handlers["aria2.forcePauseAll"] = ok
	f.handlers["aria2.purgeDownloadResult"] = ok
	f.handlers["aria2.tellActive"] = empty
	f.handlers["aria2.tellWaiting"] = empty

	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)

	return f
}

// Handle installs h for method, replacing any previous handler.
func (f *FakeEngine) Handle(method string, h HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// FailNext makes the next n requests fail with a non-JSON 503 response,
// which clients see as a transport failure.
func (f *FakeEngine) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

// Calls returns how many requests for method reached the engine, including
// failed ones.
func (f *FakeEngine) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Host returns the listening host.
func (f *FakeEngine) Host() string {
	host, _, _ := net.SplitHostPort(f.Server.Listener.Addr().String())
	return host
}

// Port returns the listening port.
func (f *FakeEngine) Port() int {
	_, port, _ := net.SplitHostPort(f.Server.Listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

type fakeRequest struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (f *FakeEngine) serve(w http.ResponseWriter, r *http.Request) {
	var req fakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	h := f.handlers[req.Method]
	f.mu.Unlock()

	if fail {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	var (
		result any
		rpcErr *RPCError
	)
	switch {
	case len(req.Params) == 0 || string(req.Params[0]) != strconv.Quote("token:"+f.Secret):
		rpcErr = &RPCError{Code: 1, Message: "Unauthorized"}
	case h == nil:
		rpcErr = &RPCError{Code: 1, Message: "No such method: " + req.Method}
	default:
		result, rpcErr = h(req.Params[1:])
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
		w.WriteHeader(http.StatusBadRequest)
	} else {
		resp["result"] = result
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// StatusReply builds an aria2.tellStatus result. files maps output path to
// expected length.
func StatusReply(gid, state, errorCode, errorMessage string, files map[string]int64) map[string]any {
	var total int64
	wireFiles := make([]map[string]string, 0, len(files))
	for path, length := range files {
		total += length
		wireFiles = append(wireFiles, map[string]string{
			"path":            path,
			"length":          strconv.FormatInt(length, 10),
			"completedLength": strconv.FormatInt(length, 10),
		})
	}

	reply := map[string]any{
		"gid":             gid,
		"status":          state,
		"totalLength":     strconv.FormatInt(total, 10),
		"completedLength": strconv.FormatInt(total, 10),
		"downloadSpeed":   "1048576",
		"connections":     "4",
		"files":           wireFiles,
	}
	if errorCode != "" {
		reply["errorCode"] = errorCode
		reply["errorMessage"] = errorMessage
	}
	return reply
}
