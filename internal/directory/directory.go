// Package directory lists platform users with the server-held service key.
// The key never leaves this package.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"gochat/internal/chat/models"
	"gochat/internal/common"
)

const (
	defaultPerPage = 200
	maxPages       = 50
)

type Directory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

type AdminDirectory struct {
	baseURL    string
	serviceKey string
	perPage    int
	client     *http.Client
	log        zerolog.Logger
}

var _ Directory = (*AdminDirectory)(nil)

func NewAdminDirectory(baseURL, serviceKey string, timeout time.Duration, log zerolog.Logger) *AdminDirectory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AdminDirectory{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		perPage:    defaultPerPage,
		client:     &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "directory").Logger(),
	}
}

type adminUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

type adminUsersPage struct {
	Users []adminUser `json:"users"`
}

// ListUsers walks every page of the admin listing.
func (d *AdminDirectory) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	for page := 1; ; page++ {
		batch, err := d.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}

		users = append(users, lo.Map(batch, func(u adminUser, _ int) models.User {
			return models.User{
				ID:          u.ID,
				Email:       u.Email,
				DisplayName: models.DisplayNameFromMetadata(u.UserMetadata, u.Email),
			}
		})...)

		if len(batch) < d.perPage {
			break
		}
		if page == maxPages {
			d.log.Warn().Int("pages", maxPages).Int("users", len(users)).Msg("user listing truncated at page limit")
			break
		}
	}

	return lo.UniqBy(users, func(u models.User) string { return u.ID }), nil
}

func (d *AdminDirectory) fetchPage(ctx context.Context, page int) ([]adminUser, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(d.perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/auth/v1/admin/users?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build directory request: %v", common.ErrStorageUnavailable, err)
	}
	req.Header.Set("apikey", d.serviceKey)
	req.Header.Set("Authorization", "Bearer "+d.serviceKey)

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Error().Err(err).Msg("user directory unreachable")
		return nil, fmt.Errorf("%w: user directory unreachable", common.ErrStorageUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.log.Error().Int("status", resp.StatusCode).Int("page", page).Msg("user directory error")
		return nil, fmt.Errorf("%w: user directory returned %d", common.ErrStorageUnavailable, resp.StatusCode)
	}

	var body adminUsersPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode user directory: %v", common.ErrStorageUnavailable, err)
	}
	return body.Users, nil
}
