package random

import (
	"strings"

	"github.com/google/uuid"
)

// TokenPrefix marks tokens minted by the forging layer.
const TokenPrefix = "SVR-"

// Token returns a fresh opaque ASCII session token: TokenPrefix followed by
// 32 lowercase hex digits.
func Token() string {
	return TokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
