package testing

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/glefebvre/cinefinder/internal/models"
)

// FakeMovie describes one movie served by FakeCatalog
type FakeMovie struct {
	ID          int
	Title       string
	ReleaseDate string
	GenreIDs    []int
	VoteAverage float64
	VoteCount   int
	Popularity  float64
	Adult       bool
	Runtime     int
	Budget      int64
	Revenue     int64

	Director string
	// Crew lists extra non-director credits as name -> job
	Crew     map[string]string
	Cast     []string
	Flatrate []string
	Rent     []string
	Buy      []string
}

// FakePerson is a /search/person hit
type FakePerson struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

// FakeCatalog is an httptest TMDB stand-in. Search keys are case-insensitive.
type FakeCatalog struct {
	Server *httptest.Server
	Region string

	mu       sync.Mutex
	genres   []models.Genre
	movies   map[int]FakeMovie
	order    []int
	searches map[string][]int
	people   map[string][]FakePerson
	crew     map[int][]int
	failures map[string]int
	requests map[string]int
}

// NewFakeCatalog starts a fake catalog server closed on test cleanup
func NewFakeCatalog(t *testing.T) *FakeCatalog {
	t.Helper()

	f := &FakeCatalog{
		Region:   "BR",
		movies:   make(map[int]FakeMovie),
		searches: make(map[string][]int),
		people:   make(map[string][]FakePerson),
		crew:     make(map[int][]int),
		failures: make(map[string]int),
		requests: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL to configure a catalog client with
func (f *FakeCatalog) URL() string {
	return f.Server.URL
}

// StandardGenres is a subset of the real movie genre list
var StandardGenres = []models.Genre{
	{ID: 28, Name: "Ação"},
	{ID: 12, Name: "Aventura"},
	{ID: 35, Name: "Comédia"},
	{ID: 80, Name: "Crime"},
	{ID: 18, Name: "Drama"},
	{ID: 878, Name: "Ficção científica"},
	{ID: 53, Name: "Thriller"},
}

// SetGenres replaces the genre reference list
func (f *FakeCatalog) SetGenres(genres ...models.Genre) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genres = genres
}

// AddMovie registers a movie; discovery lists movies in insertion order
func (f *FakeCatalog) AddMovie(m FakeMovie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.movies[m.ID]; !ok {
		f.order = append(f.order, m.ID)
	}
	f.movies[m.ID] = m
}

// AddSearch makes a /search/movie query return ids in order
func (f *FakeCatalog) AddSearch(query string, ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(query)
	f.searches[key] = append(f.searches[key], ids...)
}

// AddPerson makes a /search/person query return p, credited on movieIDs
func (f *FakeCatalog) AddPerson(query string, p FakePerson, movieIDs ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(query)
	f.people[key] = append(f.people[key], p)
	f.crew[p.ID] = append(f.crew[p.ID], movieIDs...)
}

// FailPath answers every request for path with status
func (f *FakeCatalog) FailPath(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = status
}

// Requests returns how many times path was requested
func (f *FakeCatalog) Requests(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

// TotalRequests returns the number of requests served
func (f *FakeCatalog) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.requests {
		total += n
	}
	return total
}

func (f *FakeCatalog) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.requests[path]++

	if r.URL.Query().Get("api_key") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"status_message": "Invalid API key"})
		return
	}
	if status, ok := f.failures[path]; ok {
		writeJSON(w, status, map[string]interface{}{"status_message": "failure"})
		return
	}

	q := r.URL.Query()
	switch {
	case path == "/genre/movie/list":
		genres := f.genres
		if genres == nil {
			genres = []models.Genre{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"genres": genres})

	case path == "/search/movie":
		f.writePage(w, f.searches[strings.ToLower(q.Get("query"))], q)

	case path == "/search/person":
		people := f.people[strings.ToLower(q.Get("query"))]
		if people == nil {
			people = []FakePerson{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"page": 1, "results": people, "total_pages": 1, "total_results": len(people),
		})

	case path == "/discover/movie":
		f.writePage(w, f.discover(q), q)

	case strings.HasPrefix(path, "/movie/"):
		f.serveMovie(w, strings.TrimPrefix(path, "/movie/"))

	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"status_message": "not found"})
	}
}

func (f *FakeCatalog) serveMovie(w http.ResponseWriter, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.Atoi(parts[0])
	m, ok := f.movies[id]
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"status_message": "not found"})
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		detail := f.item(m)
		detail["genres"] = f.resolve(m.GenreIDs)
		delete(detail, "genre_ids")
		detail["runtime"] = m.Runtime
		detail["budget"] = m.Budget
		detail["revenue"] = m.Revenue
		writeJSON(w, http.StatusOK, detail)

	case "credits":
		crew := []map[string]interface{}{}
		names := make([]string, 0, len(m.Crew))
		for name := range m.Crew {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			crew = append(crew, map[string]interface{}{"name": name, "job": m.Crew[name], "department": "Production"})
		}
		if m.Director != "" {
			crew = append(crew, map[string]interface{}{"name": m.Director, "job": "Director", "department": "Directing"})
		}
		cast := []map[string]interface{}{}
		for i, name := range m.Cast {
			cast = append(cast, map[string]interface{}{"name": name, "order": i})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": m.ID, "cast": cast, "crew": crew})

	case "watch/providers":
		results := map[string]interface{}{}
		if len(m.Flatrate)+len(m.Rent)+len(m.Buy) > 0 {
			results[f.Region] = map[string]interface{}{
				"flatrate": providers(m.Flatrate),
				"rent":     providers(m.Rent),
				"buy":      providers(m.Buy),
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": m.ID, "results": results})

	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"status_message": "not found"})
	}
}

// discover applies crew, genre (any), release window and vote filters
func (f *FakeCatalog) discover(q map[string][]string) []int {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	if crewID, err := strconv.Atoi(get("with_crew")); err == nil {
		return f.crew[crewID]
	}

	// both "all of" (comma) and "any of" (pipe) lists are matched as "any of"
	genres := models.SplitIDs(strings.ReplaceAll(get("with_genres"), "|", ","))
	gte, _ := models.ParseYear(get("primary_release_date.gte"))
	lte, _ := models.ParseYear(get("primary_release_date.lte"))
	minVotes, _ := strconv.Atoi(get("vote_count.gte"))
	minAverage, _ := strconv.ParseFloat(get("vote_average.gte"), 64)

	var ids []int
	for _, id := range f.order {
		m := f.movies[id]
		if len(genres) > 0 && !intersects(m.GenreIDs, genres) {
			continue
		}
		year, ok := models.ParseYear(m.ReleaseDate)
		if (gte > 0 || lte > 0) && !ok {
			continue
		}
		if gte > 0 && year < gte {
			continue
		}
		if lte > 0 && year > lte {
			continue
		}
		if m.VoteCount < minVotes || m.VoteAverage < minAverage {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (f *FakeCatalog) writePage(w http.ResponseWriter, ids []int, q map[string][]string) {
	const pageSize = 20
	page := 1
	if v := q["page"]; len(v) > 0 {
		if p, err := strconv.Atoi(v[0]); err == nil && p > 0 {
			page = p
		}
	}

	results := []map[string]interface{}{}
	start := (page - 1) * pageSize
	for i := start; i < len(ids) && i < start+pageSize; i++ {
		if m, ok := f.movies[ids[i]]; ok {
			results = append(results, f.item(m))
		}
	}

	totalPages := (len(ids) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"page":          page,
		"results":       results,
		"total_pages":   totalPages,
		"total_results": len(ids),
	})
}

func (f *FakeCatalog) item(m FakeMovie) map[string]interface{} {
	genreIDs := m.GenreIDs
	if genreIDs == nil {
		genreIDs = []int{}
	}
	return map[string]interface{}{
		"id":                m.ID,
		"title":             m.Title,
		"original_title":    m.Title,
		"overview":          "",
		"poster_path":       nil,
		"backdrop_path":     nil,
		"release_date":      m.ReleaseDate,
		"genre_ids":         genreIDs,
		"vote_average":      m.VoteAverage,
		"vote_count":        m.VoteCount,
		"popularity":        m.Popularity,
		"adult":             m.Adult,
		"original_language": "pt",
		"video":             false,
	}
}

func (f *FakeCatalog) resolve(ids []int) []models.Genre {
	out := []models.Genre{}
	for _, id := range ids {
		for _, g := range f.genres {
			if g.ID == id {
				out = append(out, g)
			}
		}
	}
	return out
}

func providers(names []string) []map[string]interface{} {
	out := []map[string]interface{}{}
	for i, n := range names {
		out = append(out, map[string]interface{}{"provider_id": i + 1, "provider_name": n, "display_priority": i})
	}
	return out
}

func intersects(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
