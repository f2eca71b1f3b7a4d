package dbpool

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyPgError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrOther},
		{"invalid password", &pgconn.PgError{Code: "28P01"}, ErrAuthenticationFailed},
		{"invalid authorization", &pgconn.PgError{Code: "28000"}, ErrAuthenticationFailed},
		{"invalid catalog", &pgconn.PgError{Code: "3D000"}, ErrDatabaseNotFound},
		{"too many connections", &pgconn.PgError{Code: "53300"}, ErrTooManyConnections},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, ErrConnectionFailed},
		{"unmapped pg code", &pgconn.PgError{Code: "99999"}, ErrOther},
		{"deadline exceeded", context.DeadlineExceeded, ErrTemporarilyUnavailable},
		{"generic error", errors.New("boom"), ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyPgError(tt.err); got != tt.want {
				t.Fatalf("classifyPgError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyPgError_ConnectError(t *testing.T) {
	err := &pgconn.ConnectError{Config: nil, Err: errors.New("dial failed")}
	if got := classifyPgError(err); got != ErrConnectionFailed {
		t.Fatalf("classifyPgError(ConnectError) = %s, want %s", got, ErrConnectionFailed)
	}
}
