// Package catalog is a typed client for the Siidaa catalog, user and
// payment endpoints.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/siidaa/admin-console/internal/api"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// Resource kinds addressable by name
const (
	KindArtists = "artists"
	KindAlbums  = "albums"
	KindSongs   = "songs"
	KindUsers   = "users"
)

var kindEndpoints = map[string]string{
	KindArtists: "/artists/",
	KindAlbums:  "/albums/",
	KindSongs:   "/songs/",
	KindUsers:   "/users/",
}

// Kinds returns the resource kinds accepted by List, Get and Delete
func Kinds() []string {
	kinds := make([]string, 0, len(kindEndpoints))
	for k := range kindEndpoints {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Client wraps the request helper with catalog operations
type Client struct {
	api *api.Client
}

// NewClient creates a catalog client
func NewClient(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

func kindEndpoint(kind string) (string, error) {
	endpoint, ok := kindEndpoints[strings.ToLower(kind)]
	if !ok {
		return "", utils.NewAppError(utils.ErrCodeValidation, "Unknown catalog kind",
			fmt.Sprintf("%q (expected one of %s)", kind, strings.Join(Kinds(), ", ")))
	}
	return endpoint, nil
}

func itemEndpoint(kind string, id int64) (string, error) {
	base, err := kindEndpoint(kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d/", base, id), nil
}

// List returns every item of kind as its typed slice
func (c *Client) List(ctx context.Context, kind string) (interface{}, error) {
	switch strings.ToLower(kind) {
	case KindArtists:
		return c.Artists(ctx)
	case KindAlbums:
		return c.Albums(ctx)
	case KindSongs:
		return c.Songs(ctx)
	case KindUsers:
		return c.Users(ctx)
	}
	_, err := kindEndpoint(kind)
	return nil, err
}

// Get returns one item of kind
func (c *Client) Get(ctx context.Context, kind string, id int64) (interface{}, error) {
	switch strings.ToLower(kind) {
	case KindArtists:
		return c.Artist(ctx, id)
	case KindAlbums:
		return c.Album(ctx, id)
	case KindSongs:
		return c.Song(ctx, id)
	case KindUsers:
		var u models.Customer
		if err := c.get(ctx, KindUsers, id, &u); err != nil {
			return nil, err
		}
		return &u, nil
	}
	_, err := kindEndpoint(kind)
	return nil, err
}

// Delete removes one item of kind
func (c *Client) Delete(ctx context.Context, kind string, id int64) error {
	endpoint, err := itemEndpoint(kind, id)
	if err != nil {
		return err
	}
	return c.api.Delete(ctx, endpoint)
}

func (c *Client) list(ctx context.Context, kind string, out interface{}) error {
	endpoint, err := kindEndpoint(kind)
	if err != nil {
		return err
	}
	return c.api.Get(ctx, endpoint, out)
}

func (c *Client) get(ctx context.Context, kind string, id int64, out interface{}) error {
	endpoint, err := itemEndpoint(kind, id)
	if err != nil {
		return err
	}
	return c.api.Get(ctx, endpoint, out)
}

// create posts body (JSON value or *api.MultipartBody) to the kind's collection
func (c *Client) create(ctx context.Context, kind string, body, out interface{}) error {
	endpoint, err := kindEndpoint(kind)
	if err != nil {
		return err
	}
	return c.api.Post(ctx, endpoint, body, out)
}

// update patches one item with body (JSON value or *api.MultipartBody)
func (c *Client) update(ctx context.Context, kind string, id int64, body, out interface{}) error {
	endpoint, err := itemEndpoint(kind, id)
	if err != nil {
		return err
	}
	return c.api.Patch(ctx, endpoint, body, out)
}

// Artists lists artists
func (c *Client) Artists(ctx context.Context) ([]models.Artist, error) {
	var out []models.Artist
	if err := c.list(ctx, KindArtists, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Artist returns one artist
func (c *Client) Artist(ctx context.Context, id int64) (*models.Artist, error) {
	var out models.Artist
	if err := c.get(ctx, KindArtists, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateArtist creates an artist from a JSON value or multipart body
func (c *Client) CreateArtist(ctx context.Context, body interface{}) (*models.Artist, error) {
	var out models.Artist
	if err := c.create(ctx, KindArtists, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateArtist patches an artist
func (c *Client) UpdateArtist(ctx context.Context, id int64, body interface{}) (*models.Artist, error) {
	var out models.Artist
	if err := c.update(ctx, KindArtists, id, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Albums lists albums
func (c *Client) Albums(ctx context.Context) ([]models.Album, error) {
	var out []models.Album
	if err := c.list(ctx, KindAlbums, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Album returns one album
func (c *Client) Album(ctx context.Context, id int64) (*models.Album, error) {
	var out models.Album
	if err := c.get(ctx, KindAlbums, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAlbum creates an album
func (c *Client) CreateAlbum(ctx context.Context, body interface{}) (*models.Album, error) {
	var out models.Album
	if err := c.create(ctx, KindAlbums, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAlbum patches an album
func (c *Client) UpdateAlbum(ctx context.Context, id int64, body interface{}) (*models.Album, error) {
	var out models.Album
	if err := c.update(ctx, KindAlbums, id, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Songs lists songs
func (c *Client) Songs(ctx context.Context) ([]models.Song, error) {
	var out []models.Song
	if err := c.list(ctx, KindSongs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Song returns one song
func (c *Client) Song(ctx context.Context, id int64) (*models.Song, error) {
	var out models.Song
	if err := c.get(ctx, KindSongs, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSong creates a song; audio uploads use a multipart body
func (c *Client) CreateSong(ctx context.Context, body interface{}) (*models.Song, error) {
	var out models.Song
	if err := c.create(ctx, KindSongs, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSong patches a song
func (c *Client) UpdateSong(ctx context.Context, id int64, body interface{}) (*models.Song, error) {
	var out models.Song
	if err := c.update(ctx, KindSongs, id, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists platform users
func (c *Client) Users(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := c.list(ctx, KindUsers, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentTransactions lists payment transactions
func (c *Client) PaymentTransactions(ctx context.Context) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	if err := c.api.Get(ctx, "/payment-transactions/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Purchases lists purchases
func (c *Client) Purchases(ctx context.Context) ([]models.Purchase, error) {
	var out []models.Purchase
	if err := c.api.Get(ctx, "/purchases/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health returns the backend health payload
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var out models.HealthStatus
	if err := c.api.Get(ctx, "/health/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary fetches artists, albums, songs and transactions concurrently and
// counts them. The first failure cancels the remaining fetches. Revenue is
// the exact sum of successful transaction amounts.
func (c *Client) Summary(ctx context.Context) (*models.CatalogSummary, error) {
	var (
		artists      []models.Artist
		albums       []models.Album
		songs        []models.Song
		transactions []models.PaymentTransaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		artists, err = c.Artists(gctx)
		return err
	})
	g.Go(func() (err error) {
		albums, err = c.Albums(gctx)
		return err
	})
	g.Go(func() (err error) {
		songs, err = c.Songs(gctx)
		return err
	})
	g.Go(func() (err error) {
		transactions, err = c.PaymentTransactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	revenue, err := Revenue(transactions)
	if err != nil {
		return nil, err
	}

	return &models.CatalogSummary{
		TotalArtists:      len(artists),
		TotalAlbums:       len(albums),
		TotalSongs:        len(songs),
		TotalTransactions: len(transactions),
		TotalRevenue:      revenue.StringFixed(2),
	}, nil
}

// Revenue sums the amounts of successful transactions
func Revenue(transactions []models.PaymentTransaction) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range transactions {
		if t.Status != models.TransactionSuccess {
			continue
		}
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			return decimal.Zero, utils.NewAppError(utils.ErrCodeValidation,
				"Invalid transaction amount", fmt.Sprintf("transaction %d: %q", t.ID, t.Amount))
		}
		total = total.Add(amount)
	}
	return total, nil
}

// FormatPrice renders a decimal price string with two places
func FormatPrice(price string) string {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return price
	}
	return "$" + d.StringFixed(2)
}

// FormatDuration turns a backend HH:MM:SS duration into M:SS, keeping hours when present
func FormatDuration(duration string) string {
	parts := strings.Split(duration, ":")
	if len(parts) != 3 {
		return duration
	}
	var h, m, s int
	if _, err := fmt.Sscanf(duration, "%d:%d:%d", &h, &m, &s); err != nil {
		return duration
	}
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
