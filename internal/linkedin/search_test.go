package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", "test-cse")
	client.baseURL = server.URL
	client.queryDelay = 0
	return client, server
}

func searchPayload(items []searchItem) []byte {
	data, _ := json.Marshal(searchResponse{Items: items})
	return data
}

func TestBuildQuery(t *testing.T) {
	cases := []struct {
		position, location, operator string
		years                        int
		want                         string
	}{
		{"Head of Sales", "Berlin", "", 0, `site:linkedin.com/in "Head of Sales" "Berlin"`},
		{"CTO", "Berlin", "=", 5, `site:linkedin.com/in "CTO" "Berlin" "5 years"`},
		{"CTO", "", ">", 5, `site:linkedin.com/in "CTO" "5 years" OR "5+ years"`},
		{"CTO", "", "<", 3, `site:linkedin.com/in "CTO" "less than 3 years" OR "junior" OR "entry level"`},
		{"", "", "", 0, "site:linkedin.com/in"},
	}
	for _, tc := range cases {
		got := BuildQuery(tc.position, tc.location, tc.operator, tc.years)
		if got != tc.want {
			t.Errorf("BuildQuery(%q, %q, %q, %d):\n got %q\nwant %q",
				tc.position, tc.location, tc.operator, tc.years, got, tc.want)
		}
	}
}

func TestSearchExtractsProfiles(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in request")
		}
		w.Write(searchPayload([]searchItem{
			{
				Title:   "Jane Doe - VP Sales - Acme Corp | LinkedIn",
				Link:    "https://de.linkedin.com/in/janedoe",
				Snippet: "Jane leads sales at Acme.",
			},
			{
				Title: "Acme Corp hiring | LinkedIn",
				Link:  "https://www.linkedin.com/jobs/view/12345",
			},
		}))
	})

	profiles, err := client.Search(context.Background(), Params{
		Locations: []string{"Berlin"}, Positions: []string{"VP Sales"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]
	if p.Name != "Jane Doe" || p.Role != "VP Sales" || p.Company != "Acme Corp" {
		t.Errorf("unexpected extraction: %+v", p)
	}
	if p.ProfileURL != "https://www.linkedin.com/in/janedoe" {
		t.Errorf("unexpected profile url: %s", p.ProfileURL)
	}
}

func TestSearchFansOutCombinations(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()
		w.Write(searchPayload(nil))
	})

	_, err := client.Search(context.Background(), Params{
		Locations: []string{"Berlin", "Munich"},
		Positions: []string{"CTO", " VP Sales "},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(queries) != 4 {
		t.Fatalf("expected 4 queries for 2x2 combinations, got %d: %v", len(queries), queries)
	}
	want := `site:linkedin.com/in "VP Sales" "Munich"`
	if queries[3] != want {
		t.Errorf("unexpected last query:\n got %q\nwant %q", queries[3], want)
	}
}

func TestSearchSkipsFailedCombinations(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(searchPayload([]searchItem{
			{Title: "Jane Doe - VP Sales - Acme | LinkedIn", Link: "https://www.linkedin.com/in/janedoe"},
		}))
	})

	profiles, err := client.Search(context.Background(), Params{
		Locations: []string{"Berlin", "Munich"}, Positions: []string{"CTO"},
	})
	if err != nil {
		t.Fatalf("expected failed combination to be skipped, got %v", err)
	}
	if requests != 2 {
		t.Errorf("expected the second combination to run after a failure, got %d requests", requests)
	}
	if len(profiles) != 1 {
		t.Errorf("expected 1 profile from the surviving combination, got %d", len(profiles))
	}
}

func TestSearchDeduplicatesByURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(searchPayload([]searchItem{
			{Title: "Jane Doe - VP Sales - Acme | LinkedIn", Link: "https://www.linkedin.com/in/janedoe"},
			{Title: "Jane Doe - VP Sales - Acme | LinkedIn", Link: "https://de.linkedin.com/in/janedoe?trk=x"},
		}))
	})

	profiles, err := client.Search(context.Background(), Params{
		Locations: []string{"Berlin", "Munich"}, Positions: []string{"VP Sales"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Errorf("expected duplicates collapsed to 1, got %d", len(profiles))
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		w.Write(searchPayload([]searchItem{
			{Title: "Person A" + strconv.Itoa(n) + " - Role - Co | LinkedIn", Link: "https://www.linkedin.com/in/a" + strconv.Itoa(n)},
			{Title: "Person B" + strconv.Itoa(n) + " - Role - Co | LinkedIn", Link: "https://www.linkedin.com/in/b" + strconv.Itoa(n)},
		}))
	})

	profiles, err := client.Search(context.Background(), Params{
		Locations: []string{"Berlin", "Munich", "Hamburg"},
		Positions: []string{"CTO"},
		Limit:     3,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(profiles) != 3 {
		t.Errorf("expected limit of 3 profiles, got %d", len(profiles))
	}
	if requests > 2 {
		t.Errorf("expected the search to stop once the limit was reached, got %d requests", requests)
	}
}

func TestSearchUnconfigured(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Search(context.Background(), Params{
		Locations: []string{"Berlin"}, Positions: []string{"CTO"},
	})
	if err == nil {
		t.Error("expected error for unconfigured client, got nil")
	}
}

func TestExtractProfileTitleVariants(t *testing.T) {
	p, ok := extractProfile(searchItem{
		Title: "John Smith - Director of Engineering - Big Co - Berlin | LinkedIn",
		Link:  "https://www.linkedin.com/in/jsmith",
	})
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if p.Company != "Big Co - Berlin" {
		t.Errorf("expected trailing segments joined into company, got %q", p.Company)
	}

	if _, ok := extractProfile(searchItem{Title: "| LinkedIn", Link: "https://www.linkedin.com/in/x"}); ok {
		t.Error("expected extraction to fail without a name")
	}
}
