package store

import (
	"time"
)

// MaxMediaPerLock caps the attachments of one lock.
const MaxMediaPerLock = 20

const (
	MediaImage = "image"
	MediaVideo = "video"
	MediaAudio = "audio"
)

type User struct {
	ID           int64     `db:"id"            json:"id"`
	Username     string    `db:"username"      json:"username"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin"      json:"isAdmin"`
	CreatedAt    time.Time `db:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updatedAt"`
}

type Lock struct {
	ID        int64     `db:"id"         json:"id"`
	UserID    int64     `db:"user_id"    json:"userId"`
	Title     string    `db:"title"      json:"title"`
	Message   string    `db:"message"    json:"message"`
	IsPublic  bool      `db:"is_public"  json:"isPublic"`
	ScanCount int64     `db:"scan_count" json:"scanCount"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Media is one attachment. DisplayOrder values of a lock are 0..n-1.
type Media struct {
	ID           int64     `db:"id"            json:"id"`
	LockID       int64     `db:"lock_id"       json:"lockId"`
	URL          string    `db:"url"           json:"url"`
	MediaType    string    `db:"media_type"    json:"mediaType"`
	Caption      string    `db:"caption"       json:"caption"`
	DisplayOrder int       `db:"display_order" json:"displayOrder"`
	CreatedAt    time.Time `db:"created_at"    json:"createdAt"`
}

// Album is a public lock with its owner and ordered media.
type Album struct {
	Lock
	OwnerUsername string  `db:"owner_username" json:"ownerUsername"`
	Media         []Media `db:"-"              json:"media"`
}

// Stats are global counters for the admin surface.
type Stats struct {
	Users int64 `db:"users"  json:"users"`
	Locks int64 `db:"locks"  json:"locks"`
	Media int64 `db:"media"  json:"media"`
	Scans int64 `db:"scans"  json:"scans"`
}
