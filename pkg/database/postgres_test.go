package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "plain values",
			cfg:  config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "secret", Name: "approval_flow", SSLMode: "disable"},
			want: "host=db port=5432 user=app password=secret dbname=approval_flow sslmode=disable",
		},
		{
			name: "quotes password with spaces and quotes",
			cfg:  config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: `it's a \ pass`, Name: "flow"},
			want: `host=db port=5432 user=app password='it\'s a \\ pass' dbname=flow`,
		},
		{
			name: "skips empty password",
			cfg:  config.DatabaseConfig{Host: "localhost", Port: 5433, User: "postgres", Name: "flow", SSLMode: "require"},
			want: "host=localhost port=5433 user=postgres dbname=flow sslmode=require",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DSN(tc.cfg))
		})
	}
}
