package jwt_test

import (
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ecf-numeracion/pkg/jwt"
)

const (
	secret = "clave-de-prueba"
	issuer = "ecf-numeracion"
)

func TestParse_DevuelveClaims(t *testing.T) {
	tok, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleEmisor, issuer, 5)
	require.NoError(t, err)

	claims, err := jwt.Parse(secret, issuer, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "c-1", claims.CompanyID)
	assert.Equal(t, jwt.RoleEmisor, claims.Role)

	_, err = jwt.Parse(secret, "", tok)
	assert.NoError(t, err, "sin issuer configurado se acepta cualquier emisor")
}

func TestParse_Rechazos(t *testing.T) {
	valid, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleAdmin, issuer, 5)
	require.NoError(t, err)
	expired, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleAdmin, issuer, -1)
	require.NoError(t, err)
	foreign, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleAdmin, "inventario", 5)
	require.NoError(t, err)
	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.MapClaims{"company_id": "c-1", "iss": issuer}).
		SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := []struct {
		name, secret, token string
	}{
		{"vencido", secret, expired},
		{"otro secreto", "otra-clave", valid},
		{"otro emisor", secret, foreign},
		{"sin firma", secret, unsigned},
		{"secreto vacío", "", valid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jwt.Parse(tc.secret, issuer, tc.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerate_SecretoVacio(t *testing.T) {
	_, err := jwt.Generate("", "u-1", "c-1", jwt.RoleAdmin, issuer, 5)
	assert.Error(t, err)
}
