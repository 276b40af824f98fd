package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// sign builds X-Twilio-Signature the way Twilio does for form POSTs:
// base64(HMAC-SHA1(token, url + sorted key/value pairs)).
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k + form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signedRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST(StatusCallbackPath, RequireTwilioSignature(token, "https://api.example.com/"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func sendSigned(r http.Handler, target string, form url.Values, signature string) int {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireTwilioSignature(t *testing.T) {
	r := signedRouter("token")
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}, "AccountSid": {"AC1"}}
	sig := sign("token", "https://api.example.com"+StatusCallbackPath, form)

	if code := sendSigned(r, StatusCallbackPath, form, sig); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := sendSigned(r, StatusCallbackPath, form, "bogus"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", code)
	}
	if code := sendSigned(r, StatusCallbackPath, form, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", code)
	}

	tampered := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}, "AccountSid": {"AC1"}}
	if code := sendSigned(r, StatusCallbackPath, tampered, sig); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered form, got %d", code)
	}
}

func TestRequireTwilioSignature_WrongToken(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}}
	sig := sign("other", "https://api.example.com"+StatusCallbackPath, form)
	if code := sendSigned(signedRouter("token"), StatusCallbackPath, form, sig); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireTwilioSignature_EmptyTokenRejects(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}}
	sig := sign("", "https://api.example.com"+StatusCallbackPath, form)
	if code := sendSigned(signedRouter(""), StatusCallbackPath, form, sig); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireTwilioSignature_QueryIsSigned(t *testing.T) {
	r := signedRouter("token")
	form := url.Values{"CallSid": {"CA1"}}
	sig := sign("token", "https://api.example.com"+StatusCallbackPath+"?attempt=2", form)

	if code := sendSigned(r, StatusCallbackPath+"?attempt=2", form, sig); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := sendSigned(r, StatusCallbackPath+"?attempt=3", form, sig); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for changed query, got %d", code)
	}
}
