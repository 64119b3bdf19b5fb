package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode(t *testing.T) {
	t.Run("ResolvesFirstResult", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("address")
			assert.Equal(t, "ko", r.URL.Query().Get("language"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			w.Write([]byte(`{
				"status": "OK",
				"results": [{
					"formatted_address": "대한민국 서울특별시 강남구 강남대로 396",
					"geometry": {"location": {"lat": 37.4979, "lng": 127.0276}}
				}]
			}`))
		}))
		defer srv.Close()

		g := NewGoogle(&Config{APIKey: "test-key", BaseURL: srv.URL})
		place, err := g.Geocode(context.Background(), "강남역")
		require.NoError(t, err)
		assert.Equal(t, "강남역", gotQuery)
		assert.InDelta(t, 37.4979, place.Lat, 1e-6)
		assert.InDelta(t, 127.0276, place.Lng, 1e-6)
		assert.Contains(t, place.Address, "강남대로")
	})

	t.Run("ZeroResults", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
		}))
		defer srv.Close()

		g := NewGoogle(&Config{APIKey: "test-key", BaseURL: srv.URL})
		_, err := g.Geocode(context.Background(), "존재하지 않는 장소")
		assert.ErrorIs(t, err, ErrNoResults)
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		g := NewGoogle(&Config{APIKey: "bad-key", BaseURL: srv.URL})
		_, err := g.Geocode(context.Background(), "강남역")
		assert.Error(t, err)
	})
}

func TestBuildDirectionsURL(t *testing.T) {
	url := BuildDirectionsURL(37.5665, 126.978, 37.4979, 127.0276)
	assert.Equal(t, "https://www.google.com/maps/dir/37.5665,126.978/37.4979,127.0276/", url)
}
