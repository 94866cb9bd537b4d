package apiutil

import (
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// ProblemContentType is the media type of RFC 7807 responses
const ProblemContentType = "application/problem+json"

// ProblemMiddleware renders the last error attached to the context as
// RFC 7807 problem details, unless the handler already wrote a response.
func ProblemMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		if err.IsType(gin.ErrorTypeBind) {
			WriteProblem(c, errors.Invalid.Explain("request binding failed: %v", err.Err))
			return
		}
		WriteProblem(c, err.Err)
	}
}

// WriteProblem writes err as problem details and aborts the chain
func WriteProblem(c *gin.Context, err error) {
	problem := errors.ProblemFor(err, c.Request.URL.Path)
	if traceID := GetTraceID(c); traceID != "" {
		problem.WithTraceID(traceID)
	}

	c.Header("Content-Type", ProblemContentType)
	c.AbortWithStatusJSON(problem.Status, problem)
}

// GetTraceID returns the trace id of the request span, falling back to the
// X-Trace-ID header
func GetTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return c.GetHeader("X-Trace-ID")
}
