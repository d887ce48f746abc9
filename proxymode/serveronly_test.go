package proxymode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mc-gateway/gateway/mcerr"
)

func TestServerOnlyDisabledByDefault(t *testing.T) {
	req := &Request{Ctx: context.Background()}
	_, err := ServerOnly(req)
	assert.ErrorIs(t, err, mcerr.ErrInternal)
}
