package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	full := New(Conflict, "Course is full")

	assert.Equal(t, Conflict, Classify(full))
	assert.Equal(t, Conflict, Classify(fmt.Errorf("booking: %w", full)))
	assert.Equal(t, Decode, Classify(New(Decode, "bad token")))
	assert.Equal(t, NetworkOrServer, Classify(errors.New("boom")))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", full), full))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "auth_expired", AuthExpired.String())
	assert.Equal(t, "network_or_server", NetworkOrServer.String())
}
