package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, isUniqueViolation(fmt.Errorf("failed to insert user: %w", &pgconn.PgError{Code: "23505"})))

	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	require.False(t, isUniqueViolation(errors.New("connection reset")))
	require.False(t, isUniqueViolation(nil))
}
