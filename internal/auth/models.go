package auth

import "time"

// APIToken is a hashed bearer credential, per spec.md §4.M: tokens are
// never stored in plaintext, only their SHA-256 hash.
type APIToken struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"index;not null"`
	TokenHash  string `gorm:"size:64;uniqueIndex;not null"`
	Revoked    bool   `gorm:"not null;default:false"`
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Session is a cookie-backed login session.
type Session struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
