// Package jwt signs and verifies JSON Web Tokens with HMAC-SHA256.
//
// The service accepts only HS256 tokens. Tokens that name another known
// algorithm, including "none", fail signature verification; tokens naming an
// unknown algorithm fail with ErrUnexpectedSigningMethod. Temporal claims (exp,
// nbf, iat) are validated when present.
//
//	service, err := jwt.NewFromString(os.Getenv("JWT_SECRET"))
//	if err != nil {
//		return err
//	}
//
//	token, err := service.Generate(jwt.StandardClaims{
//		Subject:   "user123",
//		ExpiresAt: jwt.NumericDate(time.Now().Add(time.Hour)),
//	})
//
//	claims := jwt.MapClaims{}
//	if err := service.Parse(token, claims); err != nil {
//		switch {
//		case errors.Is(err, jwt.ErrExpiredToken):
//		case errors.Is(err, jwt.ErrInvalidSignature):
//		}
//	}
package jwt
