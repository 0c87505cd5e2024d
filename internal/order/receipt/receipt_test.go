package receipt

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/models"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID:      "o1",
		TableID: models.StringPtr("t1"),
		Kind:    models.KindDineIn,
		Status:  models.StatusPaid,
		Lines:   []models.OrderLine{{ItemID: "soup", Name: "Soup", Quantity: 2, UnitPrice: 30}},
	}
}

func TestSignVerify(t *testing.T) {
	g := NewGenerator("secret")
	token, err := g.Sign(NewPayload(sampleOrder(), time.Now()))
	require.NoError(t, err)

	p, err := g.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "o1", p.OrderID)
	assert.Equal(t, "t1", p.TableID)
	assert.Equal(t, 60.0, p.Total)
}

func TestVerifyRejectsTampering(t *testing.T) {
	g := NewGenerator("secret")
	token, err := g.Sign(NewPayload(sampleOrder(), time.Now()))
	require.NoError(t, err)

	_, err = NewGenerator("other").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = g.Verify("x" + token)
	assert.Error(t, err)

	_, err = g.Verify("no-separator")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestQRIsPNG(t *testing.T) {
	png, err := NewGenerator("secret").QR(NewPayload(sampleOrder(), time.Now()))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
