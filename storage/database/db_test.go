package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
)

func TestDSN(t *testing.T) {
	base := core.DatabaseConfig{
		Engine:   "postgres",
		Host:     "db.internal",
		Port:     "5433",
		Name:     "portal",
		User:     "portal",
		Password: "p@ss word",
	}

	tests := []struct {
		name     string
		mutate   func(c *core.DatabaseConfig)
		admin    bool
		wantUser string
		wantSSL  string
	}{
		{name: "app user", mutate: func(c *core.DatabaseConfig) {}, wantUser: "portal", wantSSL: "require"},
		{name: "tls disabled", mutate: func(c *core.DatabaseConfig) { c.DisableTLS = true }, wantUser: "portal", wantSSL: "disable"},
		{
			name:     "admin user",
			mutate:   func(c *core.DatabaseConfig) { c.AdminUser, c.AdminPassword = "postgres", "root" },
			admin:    true,
			wantUser: "postgres",
			wantSSL:  "require",
		},
		{name: "admin falls back to app user", mutate: func(c *core.DatabaseConfig) {}, admin: true, wantUser: "portal", wantSSL: "require"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &core.Config{Database: base}
			tt.mutate(&conf.Database)

			u, err := url.Parse(dsn("portal", tt.admin, conf))
			require.NoError(t, err)
			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db.internal:5433", u.Host)
			assert.Equal(t, "/portal", u.Path)
			assert.Equal(t, tt.wantUser, u.User.Username())
			assert.Equal(t, tt.wantSSL, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}

	u, err := url.Parse(dsn("portal", false, &core.Config{Database: base}))
	require.NoError(t, err)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
}
