package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/bantay/core"
)

var loginEndpoint = core.Endpoint{Key: core.EndpointLogin, Path: "/auth/login", Method: http.MethodPost}
var validateEndpoint = core.Endpoint{Key: core.EndpointValidate, Path: "/auth/validate", Method: http.MethodGet, Bearer: true}

func TestCall_SuccessDecodesData(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds core.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "ana", creds.Username)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"ok","data":{"token":"t1","user":{"id":"7","username":"ana","userType":"community"}}}`))
	}))
	defer srv.Close()

	client := New(srv.URL+"/api/", time.Second)

	// Act
	var out core.AuthResult
	err := client.Call(context.Background(), loginEndpoint, "", core.Credentials{Username: "ana", Password: "pw"}, &out)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "t1", out.Token)
	require.NotNil(t, out.User)
	assert.Equal(t, "7", out.User.ID)
	assert.Equal(t, core.ClassCommunity, out.User.UserType)
}

func TestCall_SendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	err := New(srv.URL, 0).Call(context.Background(), validateEndpoint, "secret", nil, nil)
	require.NoError(t, err)
}

func TestCall_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
		wantKind   error
	}{
		{name: "401 with envelope", status: 401, body: `{"success":false,"message":"Invalid credentials"}`, wantStatus: 401, wantMsg: "Invalid credentials"},
		{name: "500 plain text", status: 500, body: "upstream exploded\n", wantStatus: 500, wantMsg: "upstream exploded"},
		{name: "200 with success false", status: 200, body: `{"success":false,"message":"nope"}`, wantStatus: 200, wantMsg: "nope"},
		{name: "200 with garbage", status: 200, body: `<html>`, wantKind: core.ErrMalformedResponse},
		{name: "200 with wrong data shape", status: 200, body: `{"success":true,"data":"string"}`, wantKind: core.ErrMalformedResponse},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				w.Write([]byte(test.body))
			}))
			defer srv.Close()

			var out core.AuthResult
			err := New(srv.URL, time.Second).Call(context.Background(), loginEndpoint, "", nil, &out)
			require.Error(t, err)

			if test.wantKind != nil {
				assert.ErrorIs(t, err, test.wantKind)
				return
			}
			var apiErr *core.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, test.wantStatus, apiErr.Status)
			assert.Equal(t, test.wantMsg, apiErr.Message)
			assert.False(t, IsNetwork(err))
		})
	}
}

func TestCall_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url, time.Second).Call(context.Background(), validateEndpoint, "t", nil, nil)

	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, 0, core.StatusOf(err))
}

func TestCall_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := New(srv.URL, 5*time.Second).Call(ctx, validateEndpoint, "t", nil, nil)
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("abc", 2))

	// "é" is two bytes; cutting at 2 would split it
	got := truncate("aéz", 2)
	assert.Equal(t, "a", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate(strings.Repeat("日本", 300), 512)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 512)
}
