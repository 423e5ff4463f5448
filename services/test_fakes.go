package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
)

// FakeKV is a test-only core.KVStore with error injection.
type FakeKV struct {
	mu        sync.RWMutex
	data      map[string]string
	getErr    error
	setErr    error
	deleteErr error
}

func NewFakeKV() *FakeKV {
	return &FakeKV{data: make(map[string]string)}
}

func (f *FakeKV) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *FakeKV) Set(key, value string) error {
	return f.SetMany(map[string]string{key: value})
}

func (f *FakeKV) SetMany(values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	for k, v := range values {
		f.data[k] = v
	}
	return nil
}

func (f *FakeKV) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

// Snapshot returns a copy of every stored key
func (f *FakeKV) Snapshot() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

func (f *FakeKV) SetErrors(get, set, del error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr, f.setErr, f.deleteErr = get, set, del
}

// FakeCall is one recorded FakeAuthAPI call.
type FakeCall struct {
	Endpoint core.Endpoint
	Token    string
	Body     any
}

// FakeResponder answers a FakeAuthAPI call with the envelope data or an error.
type FakeResponder func(token string, body any) (any, error)

// FakeAuthAPI is a test-only core.AuthAPI. Responses are round-tripped
// through JSON so callers see the same decoding as with the real client.
type FakeAuthAPI struct {
	mu        sync.Mutex
	responses map[core.EndpointKey]FakeResponder
	calls     []FakeCall
}

func NewFakeAuthAPI() *FakeAuthAPI {
	return &FakeAuthAPI{responses: make(map[core.EndpointKey]FakeResponder)}
}

func (f *FakeAuthAPI) On(key core.EndpointKey, fn FakeResponder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = fn
}

// Reply makes key always return data.
func (f *FakeAuthAPI) Reply(key core.EndpointKey, data any) {
	f.On(key, func(string, any) (any, error) { return data, nil })
}

// Fail makes key always return err.
func (f *FakeAuthAPI) Fail(key core.EndpointKey, err error) {
	f.On(key, func(string, any) (any, error) { return nil, err })
}

func (f *FakeAuthAPI) Call(ctx context.Context, ep core.Endpoint, token string, body, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Endpoint: ep, Token: token, Body: body})
	fn, ok := f.responses[ep.Key]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		return &core.APIError{Status: 404, Message: "no fake response for " + string(ep.Key)}
	}

	data, err := fn(token, body)
	if err != nil {
		return err
	}
	if out == nil || data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *FakeAuthAPI) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// CallCount returns how many times key was called
func (f *FakeAuthAPI) CallCount(key core.EndpointKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Endpoint.Key == key {
			n++
		}
	}
	return n
}

// FakeClock is a settable core.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
