package main

import (
	"testing"

	"github.com/zeebo/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRun(t *testing.T) {
	*workers, *ops, *seed, *backlog = 4, 5000, 1, 8
	assert.NoError(t, run(zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))))
}

func TestRunInvalidFlags(t *testing.T) {
	defer func(p int) { *pushes = p }(*pushes)
	*pushes = 101
	err := run(zap.NewNop())
	assert.Error(t, err)
	assert.That(t, Error.Has(err))
}
