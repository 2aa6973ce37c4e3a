// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/throttling/utils/logging"
)

func TestServerRoutes(t *testing.T) {
	require := require.New(t)

	s := New(logging.NoLog{}, "127.0.0.1", 0, []string{"*"}, time.Second)
	require.NoError(s.AddRoute(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
		"throttles",
		"",
	))
	require.NoError(s.AddAliases("throttles", "t"))

	for _, path := range []string{"/ext/throttles", "/ext/t"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(http.StatusOK, w.Code)
		require.Equal("ok", w.Body.String())
		require.Equal(s.InstanceID().String(), w.Header().Get(HTTPHeaderInstanceID))
	}
}

func TestServerGzip(t *testing.T) {
	require := require.New(t)

	s := New(logging.NoLog{}, "127.0.0.1", 0, []string{"*"}, time.Second)
	body := strings.Repeat("throttle ", 1024)
	require.NoError(s.AddRoute(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}),
		"throttles",
		"",
	))

	req := httptest.NewRequest(http.MethodGet, "/ext/throttles", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(http.StatusOK, w.Code)
	require.Equal("gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(err)
	got, err := io.ReadAll(gz)
	require.NoError(err)
	require.Equal(body, string(got))
}

func TestServerDispatch(t *testing.T) {
	require := require.New(t)

	s := New(logging.NoLog{}, "127.0.0.1", 0, nil, time.Second)
	require.ErrorIs(s.Dispatch(), errNotDispatched)
	require.Nil(s.Addr())

	require.NoError(s.AddRoute(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		"health",
		"",
	))
	require.NoError(s.Listen())

	done := make(chan error, 1)
	go func() {
		done <- s.Dispatch()
	}()

	resp, err := http.Get("http://" + s.Addr().String() + "/ext/health")
	require.NoError(err)
	require.NoError(resp.Body.Close())
	require.Equal(http.StatusNoContent, resp.StatusCode)

	require.NoError(s.Shutdown())
	require.NoError(<-done)
}
