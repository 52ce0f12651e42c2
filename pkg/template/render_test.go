package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

func TestRenderSubstitutesAllPlaceholders(t *testing.T) {
	out, err := Render(
		"Hello {customer_name}, order {order_code} for {total_price} is now {status}",
		map[string]string{
			"customer_name": "Aigerim",
			"order_code":    "KSP-1001",
			"total_price":   "15900.00",
			"status":        "ASSEMBLED",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello Aigerim, order KSP-1001 for 15900.00 is now ASSEMBLED", out)
}

func TestRenderFailsOnUnknownVariable(t *testing.T) {
	out, err := Render("Hi {customer_name}, see {tracking_url}", map[string]string{
		"customer_name": "Aigerim",
	})
	assert.ErrorIs(t, err, xerrors.ErrTemplateRender)
	assert.Contains(t, err.Error(), "tracking_url")
	// Never hand a literal placeholder to a customer.
	assert.Empty(t, out)
}

func TestRenderPlainText(t *testing.T) {
	out, err := Render("no placeholders here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders here", out)
}
