package drive

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/config"
)

const (
	tokenURL   = "https://oauth2.googleapis.com/token"
	driveScope = "https://www.googleapis.com/auth/drive.file"
)

// Mirror copies finalized report PDFs to a Google Drive folder. The service
// account authenticates with a signed JWT assertion exchanged for a bearer
// token. A nil *Mirror is a disabled mirror; all methods are safe on it.
type Mirror struct {
	svc      *drive.Service
	folderID string
}

// NewMirror builds the mirror, or returns (nil, nil) when credentials are
// absent so the feature degrades gracefully.
func NewMirror(ctx context.Context, cfg config.DriveConfig) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	pemBytes, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &saTransport{
			email: cfg.ServiceAccountEmail,
			key:   key,
			base:  http.DefaultTransport,
		},
	}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to init drive service: %w", err)
	}

	log.Info().Str("account", cfg.ServiceAccountEmail).Msg("Drive mirror enabled")
	return &Mirror{svc: svc, folderID: cfg.FolderID}, nil
}

// MirrorPDF uploads a report PDF and returns the Drive file id
func (m *Mirror) MirrorPDF(ctx context.Context, name string, r io.Reader) (string, error) {
	if m == nil {
		return "", nil
	}

	f := &drive.File{
		Name:     name,
		MimeType: "application/pdf",
	}
	if m.folderID != "" {
		f.Parents = []string{m.folderID}
	}

	created, err := m.svc.Files.Create(f).Media(r).Context(ctx).Do()
	if err != nil {
		return "", apperr.Upstream("drive mirror failed", err)
	}
	return created.Id, nil
}

// saTransport signs outgoing requests with a cached service-account token
type saTransport struct {
	email string
	key   *rsa.PrivateKey
	base  http.RoundTripper

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (t *saTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.bearer()
	if err != nil {
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// bearer returns a valid access token, exchanging a fresh JWT assertion when
// the cached one is close to expiry.
func (t *saTransport) bearer() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expires) > time.Minute {
		return t.token, nil
	}

	now := time.Now()
	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   t.email,
		"scope": driveScope,
		"aud":   tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	signed, err := assertion.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {signed},
	}
	resp, err := http.Post(tokenURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	t.token = tokenResp.AccessToken
	t.expires = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return t.token, nil
}
