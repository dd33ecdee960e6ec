package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
)

// The identity token is the opaque bearer artifact returned after a
// successful password-only login: base64("username:password"). It is
// reversible by design and carries the plaintext password; the scheme is
// preserved from the existing client contract and deliberately not replaced
// with a signed session credential.

// EncodeToken builds the identity token for the given username and password.
func EncodeToken(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// DecodeToken extracts the username from an identity token. It splits on the
// FIRST colon, so passwords containing ':' do not corrupt the username.
// Malformed base64 or a missing separator yields common.ErrorValidation.
func DecodeToken(token string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: invalid token encoding", common.ErrorValidation)
	}
	username, _, found := strings.Cut(string(decoded), ":")
	if !found || username == "" {
		return "", fmt.Errorf("%w: malformed token", common.ErrorValidation)
	}
	return username, nil
}
