package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/domain"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func fetch(t *testing.T, url string) ([]domain.ServerDescriptor, error) {
	t.Helper()
	return NewHTTPFetcher(url, 2*time.Second, zap.NewNop()).Fetch(context.Background())
}

func TestFetch_Array(t *testing.T) {
	s := serve(t, 200, `[
		{"id":"1","country":"US","address":"test1.brandmeister.network"},
		{"id":2,"country":"DE","address":"test2.brandmeister.network","extra":true}
	]`)

	got, err := fetch(t, s.URL)
	require.NoError(t, err)
	assert.Equal(t, []domain.ServerDescriptor{
		{ID: "1", Country: "US", Address: "test1.brandmeister.network"},
		{ID: "2", Country: "DE", Address: "test2.brandmeister.network"},
	}, got)
}

func TestFetch_ObjectKeepsDocumentOrder(t *testing.T) {
	s := serve(t, 200, `{
		"3102": {"country":"US","address":"3102.master.example"},
		"2621": {"country":"DE","address":"2621.master.example"},
		"1001": {"id": 9001, "country":"XX","address":"9001.master.example"}
	}`)

	got, err := fetch(t, s.URL)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "3102", got[0].ID)
	assert.Equal(t, "2621", got[1].ID)
	assert.Equal(t, "9001", got[2].ID, "explicit id wins over the key")
}

func TestFetch_SkipsRecordsWithoutAddress(t *testing.T) {
	s := serve(t, 200, `[{"id":"1","country":"US","address":""},{"id":"2","country":"DE","address":"b.example"}]`)

	got, err := fetch(t, s.URL)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestFetch_EmptyList(t *testing.T) {
	s := serve(t, 200, `[]`)

	got, err := fetch(t, s.URL)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetch_Failures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":  {500, `{"error":"boom"}`},
		"not found":     {404, ``},
		"malformed":     {200, `[{"id":"1",`},
		"not json":      {200, `<html>maintenance</html>`},
		"scalar":        {200, `"hello"`},
		"bad id":        {200, `[{"id":{"x":1},"address":"a"}]`},
		"trailing data": {200, `[] []`},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			s := serve(t, c.status, c.body)
			got, err := fetch(t, s.URL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFetchFailure), "error must wrap ErrFetchFailure: %v", err)
			assert.Nil(t, got)
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	_, err := fetch(t, url)
	require.ErrorIs(t, err, ErrFetchFailure)
}

func TestFetch_Timeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer s.Close()

	f := NewHTTPFetcher(s.URL, 50*time.Millisecond, nil)
	_, err := f.Fetch(context.Background())
	require.ErrorIs(t, err, ErrFetchFailure)
}
