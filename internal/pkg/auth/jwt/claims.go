package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JWT claims carried by a session token.
// Only the stable identity fields live in the token; everything else (presence,
// profile data) is read from the user document on demand.
type Payload struct {
	// StandardClaims embeds the JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer), used for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the opaque, stable identifier of the account holding this session.
	ID string `json:"id"`

	// Handle is the user's private handle at the time the token was issued.
	// Used only for log context; directory lookups always go to the store.
	Handle string `json:"handle"`
}
