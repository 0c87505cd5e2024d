package receipt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-pos/internal/models"
)

var ErrInvalidSignature = errors.New("receipt signature does not match")

// Payload is what a printed receipt's QR code carries.
type Payload struct {
	OrderID  string             `json:"order_id"`
	TableID  string             `json:"table_id,omitempty"`
	Kind     models.OrderKind   `json:"kind"`
	Status   models.OrderStatus `json:"status"`
	Lines    []models.OrderLine `json:"lines"`
	Total    float64            `json:"total"`
	IssuedAt time.Time          `json:"issued_at"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret))
	return &Generator{secret: hashed[:]}
}

func NewPayload(o *models.Order, at time.Time) Payload {
	return Payload{
		OrderID:  o.ID,
		TableID:  models.StringValue(o.TableID),
		Kind:     o.Kind,
		Status:   o.Status,
		Lines:    o.Lines,
		Total:    o.Total(),
		IssuedAt: at.UTC(),
	}
}

// Sign encodes p as "<base64 json>.<base64 hmac>".
func (g *Generator) Sign(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(data)
	return body + "." + base64.RawURLEncoding.EncodeToString(g.mac(body)), nil
}

// Verify checks a token produced by Sign and returns its payload.
func (g *Generator) Verify(token string) (*Payload, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidSignature
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, g.mac(body)) {
		return nil, ErrInvalidSignature
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// QR renders the signed payload as a PNG.
func (g *Generator) QR(p Payload) ([]byte, error) {
	token, err := g.Sign(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}

func (g *Generator) mac(body string) []byte {
	h := hmac.New(sha256.New, g.secret)
	h.Write([]byte(body))
	return h.Sum(nil)
}
