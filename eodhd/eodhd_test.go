package eodhd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/autobasher/portfolio/date"
)

func mustDate(t *testing.T, s string) date.Date {
	t.Helper()
	return date.MustParse(s)
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("demo", nil, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestDailyCloses(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/eod/AAPL.US" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_token"); got != "demo" {
			t.Errorf("api_token = %q", got)
		}
		if got := r.URL.Query().Get("from"); got != "2024-01-02" {
			t.Errorf("from = %q", got)
		}
		fmt.Fprint(w, `[
			{"date":"2024-01-02","open":184.2,"close":185.64,"adjusted_close":184.9},
			{"date":"2024-01-03","open":183.9,"close":184.25,"adjusted_close":183.5}
		]`)
	})

	points, err := c.DailyCloses(context.Background(), "AAPL.US",
		mustDate(t, "2024-01-02"), mustDate(t, "2024-01-03"))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if points[0].On.String() != "2024-01-02" || points[0].Close != 185.64 {
		t.Errorf("first point = %+v", points[0])
	}
	if points[1].AdjClose != 183.5 {
		t.Errorf("adjusted close = %v, want 183.5", points[1].AdjClose)
	}
}

func TestSplits(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"date":"2024-06-10","split":"10.000000/1.000000"}]`)
	})

	splits, err := c.Splits(context.Background(), "NVDA.US",
		mustDate(t, "2024-01-01"), mustDate(t, "2024-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) != 1 {
		t.Fatalf("splits = %d, want 1", len(splits))
	}
	if !splits[0].Ratio.Equal(decimal.NewFromInt(10)) {
		t.Errorf("ratio = %s, want 10", splits[0].Ratio)
	}
	if splits[0].On.String() != "2024-06-10" {
		t.Errorf("date = %s", splits[0].On)
	}
}

func TestParseSplitRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "10.000000/1.000000", want: "10"},
		{in: "1/10", want: "0.1"},
		{in: "3/2", want: "1.5"},
		{in: "garbage", wantErr: true},
		{in: "1/0", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseSplitRatio(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseSplitRatio(%q): want error, got %s", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSplitRatio(%q): %v", tc.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("parseSplitRatio(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestLive(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/real-time/AAPL.US" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"code":"AAPL.US","timestamp":1717171717,"close":189.98}`)
	})

	price, err := c.Live(context.Background(), "AAPL.US")
	if err != nil {
		t.Fatal(err)
	}
	if price != 189.98 {
		t.Errorf("price = %v, want 189.98", price)
	}
}

func TestLiveHTTPError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	if _, err := c.Live(context.Background(), "AAPL.US"); err == nil {
		t.Fatal("want error on 401 response")
	}
}
