package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/cinefinder/internal/circuitbreaker"
	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
	testutil "github.com/glefebvre/cinefinder/internal/testing"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	return NewClient(Config{APIKey: "test-api-key", BaseURL: baseURL}, opts...)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "test-api-key"})

	if client.cfg.Language != "pt-BR" {
		t.Errorf("expected default language 'pt-BR', got '%s'", client.cfg.Language)
	}
	if client.Region() != "BR" {
		t.Errorf("expected default region 'BR', got '%s'", client.Region())
	}
	if client.cfg.BaseURL != defaultBaseURL {
		t.Errorf("expected default base URL, got '%s'", client.cfg.BaseURL)
	}
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("expected default timeout %v, got %v", defaultTimeout, client.httpClient.Timeout)
	}
	if client.limiter != nil {
		t.Error("expected no limiter without requests_per_second")
	}
	if client.breaker.Name() != "tmdb" {
		t.Errorf("expected breaker 'tmdb', got '%s'", client.breaker.Name())
	}
}

func TestRequest_Memoises(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	fake.SetGenres(testutil.StandardGenres...)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	first, err := client.Request(ctx, "/genre/movie/list")
	require.NoError(t, err)
	second, err := client.Request(ctx, "/genre/movie/list")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.Requests("/genre/movie/list"))
}

func TestRequest_ConcurrentCallersShareOneFetch(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte(`{"genres":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Request(context.Background(), "/genre/movie/list")
			assert.NoError(t, err)
		}()
	}

	// let every caller join the in-flight request before answering
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRequest_CredentialsNotPartOfKey(t *testing.T) {
	var gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write([]byte(`{"page":1,"results":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Request(context.Background(), "/search/movie?query=Matrix&page=1")
	require.NoError(t, err)

	assert.Contains(t, gotURL, "api_key=test-api-key")
	assert.Contains(t, gotURL, "language=pt-BR")
	assert.True(t, strings.HasPrefix(gotURL, "/search/movie?query=Matrix&page=1&"))

	_, ok, err := client.store.Get(context.Background(), "/search/movie?query=Matrix&page=1")
	require.NoError(t, err)
	assert.True(t, ok, "expected response cached under the credential-free endpoint")
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeCatalog(t)
			fake.FailPath("/movie/550", tt.status)
			client := newTestClient(t, fake.URL())

			_, err := client.Request(context.Background(), "/movie/550")
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeCatalogUnavailable, apperrors.GetErrorCode(err))
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))

			// failures are not memoised
			client.Request(context.Background(), "/movie/550")
			assert.Equal(t, 2, fake.Requests("/movie/550"))
		})
	}
}

func TestRequest_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.Request(context.Background(), "/genre/movie/list")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCatalogUnreachable, apperrors.GetErrorCode(err))
	assert.True(t, apperrors.IsCatalogError(err))
}

func TestRequest_BreakerOpensOnServerErrors(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	fake.FailPath("/genre/movie/list", http.StatusServiceUnavailable)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Request(ctx, "/genre/movie/list")
		assert.Equal(t, apperrors.CodeCatalogUnavailable, apperrors.GetErrorCode(err))
	}

	assert.Equal(t, circuitbreaker.StateOpen, client.breaker.State())

	_, err := client.Request(ctx, "/genre/movie/list")
	assert.Equal(t, apperrors.CodeCatalogUnreachable, apperrors.GetErrorCode(err))
	assert.Equal(t, 5, fake.Requests("/genre/movie/list"), "open breaker must not reach the server")
}

func TestRequest_ClientErrorsKeepBreakerClosed(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	client := newTestClient(t, fake.URL())

	for i := 0; i < 10; i++ {
		client.Request(context.Background(), "/movie/999999")
	}

	assert.Equal(t, circuitbreaker.StateClosed, client.breaker.State())
	assert.Equal(t, 10, fake.Requests("/movie/999999"))
}

func TestRequest_CancelledContext(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	client := newTestClient(t, fake.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Request(ctx, "/genre/movie/list")
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, client.breaker.State())
}

func TestRequest_AbandonedCallerDoesNotFailOthers(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"genres":[{"id":18,"name":"Drama"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	time.AfterFunc(40*time.Millisecond, cancelA)

	var (
		wg    sync.WaitGroup
		errA  error
		bodyB []byte
		errB  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = client.Request(ctxA, "/genre/movie/list")
	}()
	go func() {
		defer wg.Done()
		// join after A so A owns the in-flight fetch
		time.Sleep(10 * time.Millisecond)
		bodyB, errB = client.Request(context.Background(), "/genre/movie/list")
	}()
	wg.Wait()

	require.Error(t, errA)
	assert.Equal(t, apperrors.CodeCatalogUnreachable, apperrors.GetErrorCode(errA))

	require.NoError(t, errB)
	assert.Contains(t, string(bodyB), "Drama")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, circuitbreaker.StateClosed, client.breaker.State())
}

func TestRequest_CallerDeadlinesKeepBreakerClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	endpoints := []string{"/movie/1", "/movie/2", "/movie/3", "/movie/4", "/movie/5", "/movie/6"}
	var wg sync.WaitGroup
	for _, endpoint := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := client.Request(ctx, endpoint)
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	// the detached fetches still complete and fill the cache
	assert.Eventually(t, func() bool {
		for _, endpoint := range endpoints {
			if _, ok, _ := client.store.Get(context.Background(), endpoint); !ok {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, circuitbreaker.StateClosed, client.breaker.State())
}

func TestRequest_CacheLookupCountedOnce(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	client := newTestClient(t, fake.URL())

	backend := client.store.Name()
	misses := promtestutil.ToFloat64(metrics.CatalogCacheMisses.WithLabelValues(backend))
	hits := promtestutil.ToFloat64(metrics.CatalogCacheHits.WithLabelValues(backend))

	_, err := client.Request(context.Background(), "/genre/movie/list")
	require.NoError(t, err)
	assert.Equal(t, misses+1, promtestutil.ToFloat64(metrics.CatalogCacheMisses.WithLabelValues(backend)))
	assert.Equal(t, hits, promtestutil.ToFloat64(metrics.CatalogCacheHits.WithLabelValues(backend)))

	_, err = client.Request(context.Background(), "/genre/movie/list")
	require.NoError(t, err)
	assert.Equal(t, misses+1, promtestutil.ToFloat64(metrics.CatalogCacheMisses.WithLabelValues(backend)))
	assert.Equal(t, hits+1, promtestutil.ToFloat64(metrics.CatalogCacheHits.WithLabelValues(backend)))
}

func TestSearchMovies_Decodes(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	fake.AddMovie(testutil.FakeMovie{
		ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30",
		GenreIDs: []int{28, 878}, VoteAverage: 8.2, VoteCount: 24000, Popularity: 80,
	})
	fake.AddSearch("the matrix", 603)
	client := newTestClient(t, fake.URL())

	page, err := client.SearchMovies(context.Background(), "The Matrix", 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)

	movie := page.Results[0]
	assert.Equal(t, 603, movie.ID)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, []int{28, 878}, movie.GenreIDs)
	assert.Equal(t, "", movie.PosterPath, "null poster_path decodes to empty string")
	assert.Equal(t, 1, page.TotalResults)
}

func TestMovieCreditsAndProviders(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	fake.SetGenres(testutil.StandardGenres...)
	fake.AddMovie(testutil.FakeMovie{
		ID: 666, Title: "Cidade de Deus", ReleaseDate: "2002-08-30",
		GenreIDs: []int{18, 80}, Runtime: 130, Budget: 3300000,
		Director: "Fernando Meirelles",
		Crew:     map[string]string{"Kátia Lund": "Co-Director"},
		Cast:     []string{"Alexandre Rodrigues", "Leandro Firmino"},
		Flatrate: []string{"Netflix"},
		Rent:     []string{"Apple TV"},
	})
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	details, err := client.Movie(ctx, 666)
	require.NoError(t, err)
	assert.Equal(t, 130, details.Runtime)
	assert.Equal(t, int64(3300000), details.Budget)
	require.Len(t, details.Genres, 2)
	assert.Equal(t, "Drama", details.Genres[0].Name)

	credits, err := client.Credits(ctx, 666)
	require.NoError(t, err)
	assert.Len(t, credits.Cast, 2)
	assert.Len(t, credits.Crew, 2)

	providers, err := client.WatchProviders(ctx, 666)
	require.NoError(t, err)
	br, ok := providers.Results["BR"]
	require.True(t, ok)
	assert.Equal(t, "Netflix", br.Flatrate[0].ProviderName)
	assert.Equal(t, "Apple TV", br.Rent[0].ProviderName)
	assert.Empty(t, br.Buy)
}

func TestGenres_NeverNil(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	client := newTestClient(t, fake.URL())

	genres, err := client.Genres(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, genres)
	assert.Empty(t, genres)
}

func TestGetJSON_BadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"genres": [`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Genres(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeParse, apperrors.GetErrorCode(err))
}

func TestDiscoverQuery_Endpoint(t *testing.T) {
	tests := []struct {
		name     string
		query    DiscoverQuery
		expected string
	}{
		{
			name:     "defaults",
			query:    DiscoverQuery{},
			expected: "/discover/movie?include_adult=false&include_video=false&page=1&sort_by=popularity.desc",
		},
		{
			name:     "director works",
			query:    DiscoverQuery{WithCrew: 1032},
			expected: "/discover/movie?include_adult=false&include_video=false&page=1&sort_by=popularity.desc&with_crew=1032",
		},
		{
			name: "genres and years",
			query: DiscoverQuery{
				GenreIDs: []int{28, 35}, YearStart: 2010, YearEnd: 2024,
				SortKey: "vote_average.desc", MinVoteCount: 50, Page: 2,
			},
			expected: "/discover/movie?include_adult=false&include_video=false&page=2" +
				"&primary_release_date.gte=2010-01-01&primary_release_date.lte=2024-12-31" +
				"&sort_by=vote_average.desc&vote_count.gte=50&with_genres=28%2C35",
		},
		{
			name:     "any genre",
			query:    DiscoverQuery{GenreIDs: []int{28, 35}, AnyGenre: true},
			expected: "/discover/movie?include_adult=false&include_video=false&page=1&sort_by=popularity.desc&with_genres=28%7C35",
		},
		{
			name:     "quality floor and region",
			query:    DiscoverQuery{MinVoteAverage: 5, WatchRegion: "BR"},
			expected: "/discover/movie?include_adult=false&include_video=false&page=1&sort_by=popularity.desc&vote_average.gte=5.0&watch_region=BR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Endpoint(); got != tt.expected {
				t.Errorf("Endpoint() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestDiscover_FiltersByCrew(t *testing.T) {
	fake := testutil.NewFakeCatalog(t)
	fake.AddMovie(testutil.FakeMovie{ID: 1, Title: "Central do Brasil", ReleaseDate: "1998-04-03"})
	fake.AddMovie(testutil.FakeMovie{ID: 2, Title: "Outro", ReleaseDate: "2001-01-01"})
	fake.AddPerson("walter salles", testutil.FakePerson{ID: 77, Name: "Walter Salles", KnownForDepartment: "Directing"}, 1)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	people, err := client.SearchPeople(ctx, "Walter Salles")
	require.NoError(t, err)
	require.Len(t, people.Results, 1)
	assert.Equal(t, "Directing", people.Results[0].KnownForDepartment)

	page, err := client.Discover(ctx, DiscoverQuery{WithCrew: people.Results[0].ID})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Central do Brasil", page.Results[0].Title)
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		path, size, expected string
	}{
		{"/abc.jpg", "", "https://image.tmdb.org/t/p/w500/abc.jpg"},
		{"abc.jpg", "original", "https://image.tmdb.org/t/p/original/abc.jpg"},
		{"", "w342", PlaceholderImage},
	}

	client := NewClient(Config{APIKey: "k"})
	for _, tt := range tests {
		if got := client.ImageURL(tt.path, tt.size); got != tt.expected {
			t.Errorf("ImageURL(%q, %q) = %s, want %s", tt.path, tt.size, got, tt.expected)
		}
	}
}

func TestCountsAsHealthy(t *testing.T) {
	assert.True(t, countsAsHealthy(nil))
	assert.True(t, countsAsHealthy(context.Canceled))
	assert.True(t, countsAsHealthy(apperrors.CatalogUnavailable(404, "/movie/1")))
	assert.True(t, countsAsHealthy(apperrors.CatalogUnavailable(429, "/movie/1")))
	assert.False(t, countsAsHealthy(apperrors.CatalogUnavailable(503, "/movie/1")))
	assert.False(t, countsAsHealthy(apperrors.CatalogUnreachable("/movie/1", context.DeadlineExceeded)))
}
