package catalog

import "github.com/glefebvre/cinefinder/internal/models"

// Page is a paginated catalog listing
type Page[T any] struct {
	Page         int `json:"page"`
	Results      []T `json:"results"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
}

// Person is a /search/person hit
type Person struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

// MovieDetails is the /movie/{id} payload
type MovieDetails struct {
	models.CatalogItem
	Runtime int   `json:"runtime"`
	Budget  int64 `json:"budget"`
	Revenue int64 `json:"revenue"`
}

// CastMember is one billed actor
type CastMember struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember is one crew credit
type CrewMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Credits is the /movie/{id}/credits payload
type Credits struct {
	ID   int          `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Provider is a streaming/rental/purchase provider
type Provider struct {
	ProviderID      int    `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	DisplayPriority int    `json:"display_priority"`
}

// RegionProviders lists providers per acquisition mode for one region
type RegionProviders struct {
	Link     string     `json:"link"`
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
}

// WatchProviders is the /movie/{id}/watch/providers payload, keyed by region
type WatchProviders struct {
	ID      int                        `json:"id"`
	Results map[string]RegionProviders `json:"results"`
}

// GenreList is the /genre/movie/list payload
type GenreList struct {
	Genres []models.Genre `json:"genres"`
}
