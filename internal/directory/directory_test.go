package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/common"
)

func TestAdminDirectory_ListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"users":[
			{"id":"u1","email":"ada@example.com","user_metadata":{"name":"Ada"}},
			{"id":"u2","email":"grace@example.com","user_metadata":{"full_name":"Grace Hopper"}},
			{"id":"u3","email":"linus@example.com"}
		]}`))
	}))
	defer srv.Close()

	d := NewAdminDirectory(srv.URL, "service-key", time.Second, zerolog.Nop())
	users, err := d.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, "Ada", users[0].DisplayName)
	assert.Equal(t, "Grace Hopper", users[1].DisplayName)
	assert.Equal(t, "linus", users[2].DisplayName)
	assert.Equal(t, "linus@example.com", users[2].Email)
}

func TestAdminDirectory_Paginates(t *testing.T) {
	pages := map[int]int{1: 2, 2: 2, 3: 1}
	var seen []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		seen = append(seen, page)

		users := make([]adminUser, 0)
		for i := 0; i < pages[page]; i++ {
			users = append(users, adminUser{ID: fmt.Sprintf("p%d-%d", page, i)})
		}
		_ = json.NewEncoder(w).Encode(adminUsersPage{Users: users})
	}))
	defer srv.Close()

	d := NewAdminDirectory(srv.URL, "k", time.Second, zerolog.Nop())
	d.perPage = 2

	users, err := d.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 5)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestAdminDirectory_StopsAtPageLimitWithWarning(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := r.URL.Query().Get("page")
		_ = json.NewEncoder(w).Encode(adminUsersPage{Users: []adminUser{{ID: "a" + page}, {ID: "b" + page}}})
	}))
	defer srv.Close()

	var logs bytes.Buffer
	d := NewAdminDirectory(srv.URL, "k", time.Second, zerolog.New(&logs))
	d.perPage = 2

	users, err := d.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, maxPages, requests)
	assert.Len(t, users, 2*maxPages)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "user listing truncated at page limit")
}

func TestAdminDirectory_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"bad service key", http.StatusUnauthorized, `{"msg":"invalid"}`},
		{"garbled body", http.StatusOK, `[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			users, err := NewAdminDirectory(srv.URL, "k", time.Second, zerolog.Nop()).ListUsers(context.Background())
			assert.ErrorIs(t, err, common.ErrStorageUnavailable)
			assert.Nil(t, users)
		})
	}
}
