package telephony

import (
	"net/http"
	"net/url"
	"strings"

	"telecaller-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
)

const headerTwilioSignature = "X-Twilio-Signature"

// RequireTwilioSignature rejects webhook requests whose X-Twilio-Signature does
// not verify against authToken.
//
// publicBaseURL is the externally visible origin Twilio was given
// (e.g. https://api.example.com); the request path and query are appended to it.
func RequireTwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	base := strings.TrimRight(publicBaseURL, "/")
	validator := client.NewRequestValidator(authToken)
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		sig := c.GetHeader(headerTwilioSignature)
		full := base + c.Request.URL.RequestURI()
		if authToken == "" || sig == "" || !validator.Validate(full, formParams(c.Request.PostForm), sig) {
			log.Warn("twilio signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

// formParams flattens a callback form. Call status and recording callbacks
// carry one value per field.
func formParams(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k := range form {
		out[k] = form.Get(k)
	}
	return out
}
