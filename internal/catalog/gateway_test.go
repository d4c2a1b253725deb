package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, opts ...Option) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(Config{BaseURL: srv.URL, Timeout: time.Second}, opts...)
}

func TestGetByIDReturnsMetadata(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exercise/squat/", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"squat","name":"Back Squat","category":9,"met":6}`))
	})

	ex, err := gw.GetByID(context.Background(), "squat")
	require.NoError(t, err)
	require.Equal(t, "squat", ex.Ref)
	require.Equal(t, "Back Squat", ex.Name)
	require.Equal(t, 6.0, ex.METOrDefault(3.5))
}

func TestGetByIDDefaultsMET(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"name":"Plank"}`))
	})

	ex, err := gw.GetByID(context.Background(), "42")
	require.NoError(t, err)
	require.Nil(t, ex.MET)
	require.Equal(t, 3.5, ex.METOrDefault(3.5))
}

func TestGetByIDClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		handler  http.HandlerFunc
		notFound bool
	}{
		{
			name:     "not found",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			notFound: true,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"name":`))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(t, tc.handler)
			_, err := gw.GetByID(context.Background(), "7")
			require.Error(t, err)
			require.Equal(t, tc.notFound, errors.Is(err, ErrNotFound))
			require.Equal(t, !tc.notFound, errors.Is(err, ErrUnavailable))

			var ce *Error
			require.True(t, errors.As(err, &ce))
			require.Equal(t, "get_exercise", ce.Op)
		})
	}
}

func TestGetByIDUnreachableIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewGateway(Config{BaseURL: url, Timeout: 200 * time.Millisecond})
	_, err := gw.GetByID(context.Background(), "1")
	require.ErrorIs(t, err, ErrUnavailable)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestAutocompleteNormalisesSuggestions(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "squ", r.URL.Query().Get("term"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"suggestions":[
			{"value":"Squat","data":{"id":11,"category":"Legs","muscles":[10],"equipment":[1]}},
			{"value":"Split Squat","data":{"id":12,"category":"Legs"}}
		]}`))
	})

	got, err := gw.Autocomplete(context.Background(), "squ", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Squat", got[0].Name)
	require.JSONEq(t, `11`, string(got[0].ID))
	require.JSONEq(t, `"Legs"`, string(got[0].Category))
	require.JSONEq(t, `[10]`, string(got[0].Muscles))
}

func TestAutocompleteUnexpectedShapeIsEmpty(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	got, err := gw.Autocomplete(context.Background(), "x", 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestSearchFlattensEnvelope(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"suggestions":[{"value":"Deadlift","data":{"id":31,"category":"Back"}}]}`))
	})

	got, err := gw.Search(context.Background(), "dead")
	require.NoError(t, err)
	require.Equal(t, []Exercise{{Ref: "31", Name: "Deadlift", Category: []byte(`"Back"`)}}, got)
}

func TestListPassThroughRejectsInvalidJSON(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := gw.ListMuscles(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func TestCacheServesRepeatedLookups(t *testing.T) {
	var calls atomic.Int32
	cache := &mapCache{data: map[string][]byte{}}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Arms"}]`))
	}, WithCache(cache))

	for i := 0; i < 3; i++ {
		body, err := gw.ListCategories(context.Background())
		require.NoError(t, err)
		require.JSONEq(t, `[{"id":1,"name":"Arms"}]`, string(body))
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestFailuresAreNotCached(t *testing.T) {
	var calls atomic.Int32
	cache := &mapCache{data: map[string][]byte{}}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithCache(cache))

	_, err := gw.ListEquipment(context.Background())
	require.Error(t, err)
	_, err = gw.ListEquipment(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
	require.Empty(t, cache.data)
}
