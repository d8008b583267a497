package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchblog/internal/config"
	"researchblog/internal/logger"
	"researchblog/internal/models"
)

func TestOpen_Memory(t *testing.T) {
	stores, err := Open(context.Background(), config.Database{Driver: "memory"}, logger.Discard())
	require.NoError(t, err)
	defer stores.Close()

	account := &models.Account{Username: "ana", Email: "ana@x.com"}
	require.NoError(t, stores.Accounts.Create(context.Background(), account))

	posts, err := stores.Posts.FindByOwner(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Database{Driver: "mongo"}, logger.Discard())
	assert.ErrorContains(t, err, "unknown DB_DRIVER")
}

func TestConnect_GivesUpWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1", logger.Discard())
	assert.Error(t, err)
}
