package netatmo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
)

// ErrUnauthorized is returned when the API rejects the credentials or the
// access token.
var ErrUnauthorized = errors.New("netatmo: unauthorized")

// Credentials selects the OAuth grant. The password grant is used when
// Username and Password are both set; otherwise RefreshToken is used.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
}

// Client fetches weather station data from the Netatmo API.
type Client struct {
	conf       *oauth2.Config
	creds      Credentials
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	mu     sync.Mutex
	source oauth2.TokenSource
	last   *oauth2.Token
}

// NewClient creates a Netatmo client. timeout bounds both token and data
// requests.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"read_station"},
		},
		creds: creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchSnapshot reads every station and module visible to the account.
func (c *Client) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	token, err := c.token(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/getstationsdata", nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("create request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("stations data request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.invalidate()
		return domain.Snapshot{}, fmt.Errorf("stations data: status %d: %w", resp.StatusCode, ErrUnauthorized)
	default:
		body, _ := io.ReadAll(resp.Body)
		return domain.Snapshot{}, fmt.Errorf("netatmo API error: status %d: %s", resp.StatusCode, body)
	}

	return DecodeStationsData(resp.Body)
}

// token returns a valid access token. The cached source refreshes it ahead
// of expiry and follows refresh token rotation. After invalidation the
// source is reseeded from the latest refresh token, falling back to the
// configured grant.
func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	grant := "refresh_token"
	if c.source == nil {
		seed := &oauth2.Token{RefreshToken: c.creds.RefreshToken}
		switch {
		case c.last != nil && c.last.RefreshToken != "":
			seed = &oauth2.Token{RefreshToken: c.last.RefreshToken}
		case c.creds.Username != "" && c.creds.Password != "":
			grant = "password"
			tok, err := c.conf.PasswordCredentialsToken(c.oauthContext(ctx), c.creds.Username, c.creds.Password)
			if err != nil {
				return nil, tokenError(grant, err)
			}
			seed = tok
		}
		// Refreshes outlive any single fetch, so they run on a background
		// context bounded by the client timeout.
		c.source = c.conf.TokenSource(c.oauthContext(context.Background()), seed)
	}

	tok, err := c.source.Token()
	if err != nil {
		c.source = nil
		return nil, tokenError(grant, err)
	}
	if c.last == nil || tok.AccessToken != c.last.AccessToken {
		if c.last != nil && tok.RefreshToken != c.last.RefreshToken {
			c.logger.Debug("netatmo refresh token rotated")
		}
		c.logger.Debug("netatmo access token obtained", "grant", grant, "expires_at", tok.Expiry)
	}
	c.last = tok
	return tok, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.source = nil
	c.mu.Unlock()
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// tokenError maps credential rejections by the token endpoint to
// ErrUnauthorized.
func tokenError(grant string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("token %s grant: %w: %w", grant, err, ErrUnauthorized)
		}
	}
	return fmt.Errorf("token %s grant: %w", grant, err)
}
