package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/pkg/errors"
	"github.com/charlesng35/domaingate/pkg/metrics"
	"github.com/charlesng35/domaingate/pkg/response"
)

// AdminTokenHeader carries the admin token as an alternative to the query string.
const AdminTokenHeader = "X-Admin-Token"

// maxTokenScan bounds how much of a JSON body is buffered while looking for the
// top-level "token" field.
var maxTokenScan int64 = 32 << 20

// AdminToken rejects requests that do not present one of tokens. The token is
// read from the "token" query parameter, the X-Admin-Token header, or a "token"
// field in a JSON or form body, and must equal a configured token exactly. With
// no tokens configured every request is rejected.
func AdminToken(tokens []string) gin.HandlerFunc {
	expected := make([][]byte, 0, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			expected = append(expected, []byte(token))
		}
	}

	return func(c *gin.Context) {
		presented, tooLarge := presentedToken(c)
		if tooLarge {
			metrics.AdminAuth.WithLabelValues("failure").Inc()
			response.Error(c, errors.ErrPayloadTooLarge)
			c.Abort()
			return
		}
		if presented == "" || !matchesAny(expected, []byte(presented)) {
			metrics.AdminAuth.WithLabelValues("failure").Inc()
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		metrics.AdminAuth.WithLabelValues("success").Inc()
		c.Next()
	}
}

// matchesAny compares against every configured token so timing does not reveal
// which one matched.
func matchesAny(expected [][]byte, presented []byte) bool {
	matched := 0
	for _, token := range expected {
		matched |= subtle.ConstantTimeCompare(token, presented)
	}
	return matched == 1
}

func presentedToken(c *gin.Context) (string, bool) {
	if token := c.Query("token"); token != "" {
		return token, false
	}
	if token := c.GetHeader(AdminTokenHeader); token != "" {
		return token, false
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return "", false
	}

	contentType := c.ContentType()
	switch {
	case contentType == gin.MIMEJSON:
		return jsonBodyToken(c)
	case contentType == gin.MIMEPOSTForm, contentType == gin.MIMEMultipartPOSTForm:
		return c.PostForm("token"), false
	}
	return "", false
}

// jsonBodyToken streams the top-level keys of a JSON object until it finds
// "token". Everything consumed is replayed ahead of the unread remainder, so the
// handler always sees the complete body. The second result reports that the
// scan limit was reached before the object ended.
func jsonBodyToken(c *gin.Context) (string, bool) {
	original := c.Request.Body
	var consumed bytes.Buffer
	limited := &io.LimitedReader{R: original, N: maxTokenScan + 1}
	defer func() {
		c.Request.Body = replayBody{
			Reader: io.MultiReader(bytes.NewReader(consumed.Bytes()), original),
			closer: original,
		}
	}()

	dec := json.NewDecoder(io.TeeReader(limited, &consumed))
	token, err := scanToken(dec)
	if err != nil {
		return "", limited.N <= 0
	}
	return token, false
}

func scanToken(dec *json.Decoder) (string, error) {
	open, err := dec.Token()
	if err != nil {
		return "", err
	}
	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return "", nil
	}

	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return "", err
		}
		if name, _ := key.(string); name == "token" {
			var token string
			if err := dec.Decode(&token); err != nil {
				return "", nil
			}
			return token, nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", err
		}
	}
	return "", nil
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b replayBody) Close() error { return b.closer.Close() }
