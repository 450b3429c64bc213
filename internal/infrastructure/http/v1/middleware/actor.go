package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "epitrack/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// Actor middleware propagates the acting user into the request context.
// Authentication is owned by the perimeter (gateway); this layer only
// reads the identity headers it forwards. Requests without an actor are
// let through: mutating services reject them with a validation error.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		if actorID == "" {
			c.Next()
			return
		}

		actor := &appctx.ActorContext{
			ActorID: actorID,
			Name:    c.GetHeader(HeaderActorName),
		}
		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
