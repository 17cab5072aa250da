package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
)

func TestDialect_EmptyTypeDefaultsToSqlite(t *testing.T) {
	dialector, err := Dialect(Config{})
	require.NoError(t, err)
	require.Equal(t, "sqlite", dialector.Name())
}

func TestDialect_SqliteUsesConfiguredPath(t *testing.T) {
	dialector, err := Dialect(Config{Type: "sqlite", Name: "custom.db"})
	require.NoError(t, err)
	require.Equal(t, "sqlite", dialector.Name())
	require.Equal(t, "custom.db", dialector.(*sqlite.Dialector).DSN)
}

func TestDialect_PostgresBuildsDSN(t *testing.T) {
	dialector, err := Dialect(Config{
		Type: "postgres", Host: "localhost", User: "u", Password: "p", Name: "db", Port: "5432", SSLMode: "disable",
	})
	require.NoError(t, err)
	require.Equal(t, "postgres", dialector.Name())
}

func TestDialect_UnsupportedTypeErrors(t *testing.T) {
	_, err := Dialect(Config{Type: "mysql"})
	require.Error(t, err)
}
