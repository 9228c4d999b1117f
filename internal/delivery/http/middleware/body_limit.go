package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/c12qe/c12sim-go/internal/domain"
)

// Reject writes the response for a request a middleware refuses.
type Reject func(c *gin.Context, err error)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over
// the cap is refused through reject before the handler runs; bodies without
// one are cut off on read and surface through BodyTooLarge.
func BodyLimit(maxBytes int64, reject Reject) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			reject(c, fmt.Errorf("%w: body of %d bytes exceeds %d", domain.ErrPayloadTooLarge, c.Request.ContentLength, maxBytes))
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// BodyTooLarge maps the read error of a capped body onto
// domain.ErrPayloadTooLarge and returns every other error unchanged.
func BodyTooLarge(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: body exceeds %d bytes", domain.ErrPayloadTooLarge, maxErr.Limit)
	}
	return err
}
