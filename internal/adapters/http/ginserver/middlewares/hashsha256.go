package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/devpoll/internal/misc"
)

// HashHeader carries the SHA-256 signature of a request or response body.
const HashHeader = "HashSHA256"

type bodyBufferWriter struct {
	gin.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bodyBufferWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bodyBufferWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *bodyBufferWriter) WriteHeader(code int) {
	w.status = code
}

// HashSHA256 verifies signed request bodies and signs response bodies with key.
// With an empty key it is a no-op.
func HashSHA256(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		bw := &bodyBufferWriter{ResponseWriter: c.Writer}
		c.Writer = bw

		if got := strings.TrimSpace(c.GetHeader(HashHeader)); got != "" {
			reqBody, err := io.ReadAll(c.Request.Body)
			switch {
			case err != nil:
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
			case len(reqBody) > 0 && !misc.VerifySHA256(reqBody, key, got):
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid hash"})
			default:
				_ = c.Request.Body.Close()
				c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
			}
		}

		if !c.IsAborted() {
			c.Next()
		}

		c.Writer = bw.ResponseWriter
		if bw.body.Len() > 0 {
			c.Header(HashHeader, misc.SumSHA256(bw.body.Bytes(), key))
		}
		status := bw.status
		if status == 0 {
			status = http.StatusOK
		}
		c.Writer.WriteHeader(status)
		if _, err := c.Writer.Write(bw.body.Bytes()); err != nil {
			_ = c.Error(err)
		}
	}
}
