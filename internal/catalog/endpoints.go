package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/models"
)

// DiscoverQuery describes a /discover/movie call
type DiscoverQuery struct {
	GenreIDs []int
	// AnyGenre matches movies with at least one of GenreIDs instead of all
	AnyGenre     bool
	YearStart    int
	YearEnd      int
	SortKey      models.SortKey
	WithCrew     int
	MinVoteCount int
	// MinVoteAverage of 0 leaves the rating unconstrained
	MinVoteAverage float64
	WatchRegion    string
	Page           int
}

// Endpoint renders the query. Parameters are emitted in sorted order so equal
// queries always map to the same cache entry.
func (q DiscoverQuery) Endpoint() string {
	params := url.Values{}
	params.Set("include_adult", "false")
	params.Set("include_video", "false")

	page := q.Page
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))

	sortKey := q.SortKey
	if sortKey == "" {
		sortKey = models.SortPopularityDesc
	}
	params.Set("sort_by", string(sortKey))

	if len(q.GenreIDs) > 0 {
		genres := models.JoinIDs(q.GenreIDs)
		if q.AnyGenre {
			genres = strings.ReplaceAll(genres, ",", "|")
		}
		params.Set("with_genres", genres)
	}
	if q.YearStart > 0 {
		params.Set("primary_release_date.gte", fmt.Sprintf("%04d-01-01", q.YearStart))
	}
	if q.YearEnd > 0 {
		params.Set("primary_release_date.lte", fmt.Sprintf("%04d-12-31", q.YearEnd))
	}
	if q.WithCrew > 0 {
		params.Set("with_crew", strconv.Itoa(q.WithCrew))
	}
	if q.MinVoteCount > 0 {
		params.Set("vote_count.gte", strconv.Itoa(q.MinVoteCount))
	}
	if q.MinVoteAverage > 0 {
		params.Set("vote_average.gte", strconv.FormatFloat(q.MinVoteAverage, 'f', 1, 64))
	}
	if q.WatchRegion != "" {
		params.Set("watch_region", q.WatchRegion)
	}

	return "/discover/movie?" + params.Encode()
}

// SearchMovies runs a title search
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (*Page[models.CatalogItem], error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")

	var out Page[models.CatalogItem]
	if err := c.getJSON(ctx, "/search/movie?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchPeople runs a people search
func (c *Client) SearchPeople(ctx context.Context, query string) (*Page[Person], error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")

	var out Page[Person]
	if err := c.getJSON(ctx, "/search/person?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Discover runs a discovery query
func (c *Client) Discover(ctx context.Context, q DiscoverQuery) (*Page[models.CatalogItem], error) {
	var out Page[models.CatalogItem]
	if err := c.getJSON(ctx, q.Endpoint(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Movie fetches core metadata for one movie
func (c *Client) Movie(ctx context.Context, id int) (*MovieDetails, error) {
	var out MovieDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Credits fetches cast and crew for one movie
func (c *Client) Credits(ctx context.Context, id int) (*Credits, error) {
	var out Credits
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/credits", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchProviders fetches watch availability for one movie in every region
func (c *Client) WatchProviders(ctx context.Context, id int) (*WatchProviders, error) {
	var out WatchProviders
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/watch/providers", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Genres fetches the movie genre reference list
func (c *Client) Genres(ctx context.Context) ([]models.Genre, error) {
	var out GenreList
	if err := c.getJSON(ctx, "/genre/movie/list", &out); err != nil {
		return nil, err
	}
	if out.Genres == nil {
		return []models.Genre{}, nil
	}
	return out.Genres, nil
}

// ImageURL builds an image URL for a poster or backdrop path.
// An empty path yields the placeholder image.
func (c *Client) ImageURL(path, size string) string {
	return ImageURL(c.cfg.ImageBaseURL, path, size)
}

// PlaceholderImage is served for records without artwork
const PlaceholderImage = "/placeholder-movie.jpg"

// ImageURL joins base, size and path. size defaults to w500.
func ImageURL(base, path, size string) string {
	if path == "" {
		return PlaceholderImage
	}
	if size == "" {
		size = "w500"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base, "/") + "/" + size + path
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.Request(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.ParseError("failed to decode catalog response", err).
			WithContext("endpoint", endpoint)
	}
	return nil
}
