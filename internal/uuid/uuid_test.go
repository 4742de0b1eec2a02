package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStringReturnsDistinctValues(t *testing.T) {
	assert.NotEqual(t, NewString(), NewString())
}
