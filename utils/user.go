package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

var ErrNoActiveUser = fmt.Errorf("no authenticated principal on this request")

// GetActiveUser returns the principal the auth middleware attached to the
// request context.
func GetActiveUser(ctx *gin.Context) (TokenObject, error) {
	value, exists := ctx.Get("user")
	if !exists {
		return TokenObject{}, ErrNoActiveUser
	}

	principal, ok := value.(TokenObject)
	if !ok {
		return TokenObject{}, fmt.Errorf("unexpected principal type %T on request context", value)
	}

	return principal, nil
}
