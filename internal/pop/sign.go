package pop

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
)

// Sign builds a proof for one request, the consumer side of Verify. The
// header carries the key thumbprint as kid and the public JWK.
func Sign(signer *keys.SigningKey, method, htu string, iat time.Time) (string, error) {
	jwk, err := keys.JWKFromPublicKey(signer.Signer.Public())
	if err != nil {
		return "", err
	}
	tok := jwt.NewWithClaims(signer.Method, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.Must(uuid.NewV7()).String(),
			IssuedAt: jwt.NewNumericDate(iat),
		},
		Method: method,
		URL:    htu,
	})
	tok.Header["typ"] = jwttoken.TypeProof
	tok.Header["kid"] = jwk.Thumbprint()
	tok.Header["jwk"] = jwk
	signed, err := tok.SignedString(signer.Signer)
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}
	return signed, nil
}
