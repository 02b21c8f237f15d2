package recorder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := storageErr("begin transaction", cause)

	assert.True(t, IsStorageFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "storage failure during begin transaction")
	assert.Contains(t, err.Error(), "connection refused")

	wrapped := fmt.Errorf("pricing: record: %w", err)
	assert.True(t, IsStorageFailure(wrapped))
}

func TestIsStorageFailure_OtherErrors(t *testing.T) {
	assert.False(t, IsStorageFailure(nil))
	assert.False(t, IsStorageFailure(errors.New("boom")))
	assert.False(t, IsStorageFailure(eris.Wrap(ErrNotFound, "id x")))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(3, true))
	assert.Equal(t, "?, ?", placeholders(2, false))
}

func TestContributionRows_Rounding(t *testing.T) {
	r := sampleResult("r1", "req-1")
	rows := contributionRows(r)

	if assert.Len(t, rows, 2) {
		row := rows[1]
		assert.Len(t, row, len(contributionColumns))
		assert.Equal(t, "r1", row[0])
		assert.Equal(t, 1, row[1])
		assert.Equal(t, "scraped_listings", row[2])
		assert.Equal(t, 0.3846, row[4])
		assert.Equal(t, 0.75, row[5])
	}
}

func TestResultArgs_Shape(t *testing.T) {
	args, err := resultArgs(sampleResult("r1", "req-1"))
	assert.NoError(t, err)
	assert.Len(t, args, len(resultColumns))
	assert.Equal(t, 4461.54, args[5])
	assert.Equal(t, 6384.62, args[10])
}
