package models

import "time"

// Artist is a catalog artist
type Artist struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Bio   string `json:"bio"`
	Image string `json:"image,omitempty"`
}

// Album is a catalog album
type Album struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Artist      Artist `json:"artist"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	ReleaseDate string `json:"release_date"`
	Price       string `json:"price"`
	Songs       []Song `json:"songs,omitempty"`
}

// ArtistRef is the short artist form embedded in songs
type ArtistRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Song is a catalog song
type Song struct {
	ID           int64                  `json:"id"`
	Title        string                 `json:"title"`
	Album        *Album                 `json:"album,omitempty"`
	Artist       ArtistRef              `json:"artist"`
	AudioFile    string                 `json:"audio_file,omitempty"`
	PreviewFile  string                 `json:"preview_file,omitempty"`
	Duration     string                 `json:"duration"`
	Price        string                 `json:"price"`
	IsFree       bool                   `json:"is_free"`
	Lyrics       string                 `json:"lyrics,omitempty"`
	SyncedLyrics map[string]interface{} `json:"synced_lyrics,omitempty"`
}

// Customer is a platform user record listed by the admin console
type Customer struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateJoined  string `json:"date_joined"`
}

// Transaction statuses
const (
	TransactionPending   = "pending"
	TransactionSuccess   = "success"
	TransactionFailed    = "failed"
	TransactionCancelled = "cancelled"
)

// PaymentTransaction is a payment processed by the backend
type PaymentTransaction struct {
	ID               int64     `json:"id"`
	User             int64     `json:"user"`
	Song             *int64    `json:"song,omitempty"`
	Album            *int64    `json:"album,omitempty"`
	Amount           string    `json:"amount"`
	CommissionAmount string    `json:"commission_amount"`
	ArtistPayout     string    `json:"artist_payout"`
	CommissionRate   string    `json:"commission_rate"`
	Currency         string    `json:"currency"`
	TxRef            string    `json:"tx_ref"`
	ChapaReference   string    `json:"chapa_reference,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phone_number,omitempty"`
}

// Purchase links a user to a bought song or album
type Purchase struct {
	ID           int64  `json:"id"`
	User         int64  `json:"user"`
	Song         *int64 `json:"song,omitempty"`
	Album        *int64 `json:"album,omitempty"`
	Transaction  *int64 `json:"transaction,omitempty"`
	PurchaseDate string `json:"purchase_date"`
}

// HealthStatus is the backend health payload
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CatalogSummary is the dashboard overview computed from catalog listings
type CatalogSummary struct {
	TotalArtists      int    `json:"total_artists"`
	TotalAlbums       int    `json:"total_albums"`
	TotalSongs        int    `json:"total_songs"`
	TotalTransactions int    `json:"total_transactions"`
	TotalRevenue      string `json:"total_revenue"`
}
