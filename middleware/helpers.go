package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
)

const claimUserID = "user_id"

var (
	ErrNoClaims         = errors.New("no token claims in context")
	ErrInvalidUserClaim = errors.New("invalid user_id claim")
)

// GetUserIDFromContext returns the player id carried by the authenticated
// token. Participation and result reporting act on behalf of this id.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return 0, ErrNoClaims
	}
	raw, ok := claims[claimUserID]
	if !ok {
		return 0, fmt.Errorf("%w: missing", ErrInvalidUserClaim)
	}
	return userIDFromClaim(raw)
}

// userIDFromClaim accepts a JSON number or a numeric string.
func userIDFromClaim(raw interface{}) (int, error) {
	var id int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v is not a player id", ErrInvalidUserClaim, v)
		}
		id = int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil || n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %q is not a player id", ErrInvalidUserClaim, v)
		}
		id = int(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a player id", ErrInvalidUserClaim, v)
		}
		id = n
	default:
		return 0, fmt.Errorf("%w: unexpected type %T", ErrInvalidUserClaim, raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidUserClaim, id)
	}
	return id, nil
}
