package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "krishisetu-api")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
