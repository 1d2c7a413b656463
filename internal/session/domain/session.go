package domain

import "time"

// Session is the server record of one signed-in device. There is at most one
// row per (UserID, DeviceFingerprint); logging in again on the same device
// overwrites it.
type Session struct {
	ID                 string
	UserID             string
	DeviceFingerprint  string
	DeviceName         string
	UserAgent          string
	LastIP             string
	HashedAccessToken  string
	HashedRefreshToken string // hash of the refresh token, or of the CSRF value for web sessions
	Revoked            bool
	LastActive         time.Time
	CreatedAt          time.Time
}
