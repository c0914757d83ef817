package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: "sqlite3"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
