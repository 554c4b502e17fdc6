package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

type adjustBody struct {
	VariantID      string                 `json:"productVariantId" validate:"required,uuid"`
	QuantityChange int                    `json:"quantityChange" validate:"ne=0"`
	Reason         enums.AdjustmentReason `json:"reason" validate:"required,adjustment_reason"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productVariantId":"nope","quantityChange":0,"reason":"gift"}`))
	var body adjustBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["productVariantId"])
	assert.Equal(t, "must not be 0", details["quantityChange"])
	assert.Equal(t, "must be a known adjustment reason", details["reason"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productVariantId":"`+uuid.NewString()+`","quantityChange":1,"reason":"restock","extra":true}`))
	var body adjustBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyAccepts(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productVariantId":"`+id+`","quantityChange":-3,"reason":"damage"}`))
	var body adjustBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, -3, body.QuantityChange)
	assert.Equal(t, enums.AdjustmentReasonDamage, body.Reason)
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&page=x&lowStockOnly=true&flag=maybe", nil)

	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(req, "page", 1, 1, 1000)
	require.Error(t, err)
	v, err := ParseQueryInt(req, "missing", 7, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	on, err := ParseQueryBool(req, "lowStockOnly")
	require.NoError(t, err)
	assert.True(t, on)
	_, err = ParseQueryBool(req, "flag")
	require.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("variantId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "variantId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("123"), "variantId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseUUIDParam(withParam(uuid.Nil.String()), "variantId")
	require.Error(t, err)
}

func TestParseUUIDField(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUIDField(" "+id.String()+" ", "productVariantId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, raw := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		_, err := ParseUUIDField(raw, "productVariantId")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "trail", SanitizeString(" trail ", 0))
}
