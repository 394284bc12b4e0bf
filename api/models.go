package api

import (
	"time"

	"gatehouse/session"
)

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
}

// LoginResponse returns the minted token pair and the session view.
type LoginResponse struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	AccessExpiresAt  time.Time   `json:"access_expires_at"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at"`
	Session          SessionView `json:"session"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse returns the new access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// SessionView is the client-facing session representation. Internal fields
// like the device fingerprint are not exposed.
type SessionView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ClientIP     string    `json:"client_ip"`
	LoginMethod  string    `json:"login_method"`
	MFAVerified  bool      `json:"mfa_verified"`
	RiskScore    int       `json:"risk_score"`
	Permissions  []string  `json:"permissions,omitempty"`
	Browser      string    `json:"browser,omitempty"`
	OS           string    `json:"os,omitempty"`
}

func sessionView(s *session.Session) SessionView {
	return SessionView{
		ID:           s.ID,
		UserID:       s.UserID,
		LoginTime:    s.LoginTime,
		LastActivity: s.LastActivity,
		ClientIP:     s.ClientIP,
		LoginMethod:  string(s.LoginMethod),
		MFAVerified:  s.MFAVerified,
		RiskScore:    s.RiskScore,
		Permissions:  s.Permissions,
		Browser:      s.Metadata.Browser,
		OS:           s.Metadata.OS,
	}
}
