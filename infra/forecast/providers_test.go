package forecast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/auth"
	"github.com/kilianp07/smartcharge/core/model"
)

func TestAwattar_Prices(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/marketdata", r.URL.Path)
		query = r.URL.Query().Get("start")
		w.Header().Set("Content-Type", "application/json")
		start := t0.UnixMilli()
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"start_timestamp":` + strconv.FormatInt(start, 10) + `,"end_timestamp":` + strconv.FormatInt(start+3600000, 10) + `,"marketprice":91.3,"unit":"Eur/MWh"}
		]}`))
	}))
	defer srv.Close()

	a, err := NewAwattar(AwattarConfig{URL: srv.URL})
	require.NoError(t, err)
	a.now = func() time.Time { return t0.Add(25 * time.Minute) }

	got, err := a.Prices(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].StartTime.Equal(t0))
	assert.Equal(t, 91.3, got[0].Price)
	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), query)
}

func TestAwattar_UnsupportedCountry(t *testing.T) {
	_, err := NewAwattar(AwattarConfig{Country: "fr"})
	assert.Error(t, err)
}

func TestAwattar_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	a, err := NewAwattar(AwattarConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = a.Prices(context.Background())
	assert.Error(t, err)
}

func TestRTEWholesale_Prices(t *testing.T) {
	var tokens int32
	var rejected int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/token" {
			n := atomic.AddInt32(&tokens, 1)
			_, _ = w.Write([]byte(`{"access_token":"tok` + strconv.Itoa(int(n)) + `","token_type":"bearer","expires_in":3600}`))
			return
		}
		if r.Header.Get("Authorization") == "Bearer tok1" {
			atomic.AddInt32(&rejected, 1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.True(t, strings.HasSuffix(r.URL.Path, "/france_power_exchanges"))
		assert.Equal(t, t0.Format(time.RFC3339), r.URL.Query().Get("start_date"))
		_, _ = w.Write([]byte(`{"france_power_exchanges":[{"values":[
			{"start_date":"2024-03-01T11:00:00+01:00","end_date":"2024-03-01T12:00:00+01:00","value":1000,"price":55.2}
		]}]}`))
	}))
	defer srv.Close()

	r, err := NewRTEWholesale(RTEConfig{
		URL:  srv.URL,
		Auth: auth.Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL + "/token"},
	})
	require.NoError(t, err)
	r.now = func() time.Time { return t0 }

	got, err := r.Prices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.ForecastEntry{{StartTime: t0, Price: 55.2}}, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rejected))
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokens))
}

func TestRTEWholesale_RequiresCredentials(t *testing.T) {
	_, err := NewRTEWholesale(RTEConfig{})
	assert.Error(t, err)
}

func TestPriceChartHTML(t *testing.T) {
	fc := []model.ForecastEntry{{StartTime: t0, Price: 10}, {StartTime: t0.Add(time.Hour), Price: 5}}
	html, err := PriceChartHTML("garage", fc, []model.ScheduleSlot{{StartTime: t0.Add(time.Hour), Price: 5}})
	require.NoError(t, err)
	assert.Contains(t, html, "garage")
	assert.Contains(t, html, "2024-03-01 11:00")
}
