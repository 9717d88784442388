package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscinema/booking-service/internal/utils"
)

const testSecret = "test-secret"

func runAuth(t *testing.T, authorization string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seenSID string
	h := SessionAuth(testSecret)(func(c echo.Context) error {
		seenSID, _ = c.Get("session_id").(string)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seenSID
}

func TestSessionAuthAcceptsIssuedToken(t *testing.T) {
	tok, err := utils.NewSessionToken(testSecret, "sess-42", 30)
	require.NoError(t, err)

	rec, sid := runAuth(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-42", sid)
}

func TestSessionAuthRejectsMissingHeader(t *testing.T) {
	rec, sid := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sid)
}

func TestSessionAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewSessionToken("other-secret", "sess-42", 30)
	require.NoError(t, err)

	rec, sid := runAuth(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sid)
}

func TestSessionAuthRejectsNonHMACAlgorithm(t *testing.T) {
	// alg=none style tokens must never pass.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sid": "sess-42"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, sid := runAuth(t, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sid)
}

func TestSessionAuthRejectsTokenWithoutSessionClaim(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "someone"})
	raw, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, sid := runAuth(t, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sid)
}

func TestParseSessionTokenRoundTrip(t *testing.T) {
	tok, err := utils.NewSessionToken(testSecret, "sess-42", 30)
	require.NoError(t, err)

	sid, err := utils.ParseSessionToken(testSecret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", sid)

	_, err = utils.ParseSessionToken(testSecret, tok.Token+"x")
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}
