package api

import (
	"time"
)

import (
	"github.com/nanjiek/lockgate/internal/store"
	"github.com/nanjiek/lockgate/internal/validate"
)

type ErrorResponse struct {
	Code    int                         `json:"code"`
	Message string                      `json:"message"`
	Details []*validate.ValidationError `json:"details,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      store.User `json:"user"`
}

type UserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LockRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	IsPublic *bool  `json:"isPublic"`
	UserID   int64  `json:"userId,omitempty"` // admin only
}

// LockResponse carries the public token and album link next to the record.
type LockResponse struct {
	store.Lock
	Token    string `json:"token"`
	AlbumURL string `json:"albumUrl"`
}

type MediaRequest struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
	Caption   string `json:"caption"`
}

type OrderRequest struct {
	IDs []int64 `json:"ids"`
}

// AlbumResponse is the public view of a lock. Internal ids are not exposed.
type AlbumResponse struct {
	Token     string          `json:"token"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Owner     string          `json:"owner"`
	ScanCount int64           `json:"scanCount"`
	CreatedAt time.Time       `json:"createdAt"`
	Media     []AlbumMediaDTO `json:"media"`
}

type AlbumMediaDTO struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
	Caption   string `json:"caption,omitempty"`
	Order     int    `json:"order"`
}

type ListResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total,omitempty"`
	Limit  int   `json:"limit,omitempty"`
	Offset int   `json:"offset,omitempty"`
}

type BotClassifyRequest struct {
	UserAgent string            `json:"userAgent"`
	Referer   string            `json:"referer"`
	Headers   map[string]string `json:"headers"`
}

type BotClassifyResponse struct {
	Bot   bool    `json:"bot"`
	Rule  string  `json:"rule"`
	Score float64 `json:"score"`
}

type BlocklistResponse struct {
	IP      string `json:"ip"`
	Blocked bool   `json:"blocked"`
}
