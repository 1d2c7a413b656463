package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	identitydomain "github.com/dsqrwym/Maian-sub000/internal/identity/domain"
	"github.com/dsqrwym/Maian-sub000/internal/identity/service"
	"github.com/dsqrwym/Maian-sub000/internal/security"
)

// Machine-readable values of the "message" field in responses.
const (
	MessageInvalidCredentials  = "INVALID_CREDENTIALS"
	MessageValidation          = "VALIDATION_ERROR"
	MessageEmailRegistered     = "EMAIL_ALREADY_REGISTERED"
	MessageUsernameTaken       = "USERNAME_TAKEN"
	MessageTokenExpired        = "TOKEN_EXPIRED"
	MessageTokenInvalid        = "TOKEN_INVALID"
	MessageTokenNotYetValid    = "TOKEN_NOT_YET_VALID"
	MessageSessionNotFound     = "SESSION_NOT_FOUND"
	MessageSessionRevoked      = "SESSION_REVOKED"
	MessageCsrfInvalid         = "CSRF_INVALID"
	MessageInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	MessageServiceUnavailable  = "SERVICE_UNAVAILABLE"
	MessageInternal            = "INTERNAL_ERROR"
	MessageLoggedOut           = "LOGGED_OUT"
)

var errorTable = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrInvalidCredentials, http.StatusBadRequest, MessageInvalidCredentials},
	{service.ErrEmailAlreadyRegistered, http.StatusConflict, MessageEmailRegistered},
	{service.ErrUsernameTaken, http.StatusConflict, MessageUsernameTaken},
	{service.ErrSessionNotFound, http.StatusUnauthorized, MessageSessionNotFound},
	{service.ErrSessionRevoked, http.StatusUnauthorized, MessageSessionRevoked},
	{service.ErrCsrfInvalid, http.StatusUnauthorized, MessageCsrfInvalid},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, MessageInvalidRefreshToken},
	{security.ErrTokenExpired, http.StatusUnauthorized, MessageTokenExpired},
	{security.ErrTokenNotYetValid, http.StatusUnauthorized, MessageTokenNotYetValid},
	{security.ErrTokenInvalid, http.StatusUnauthorized, MessageTokenInvalid},
	{security.ErrServiceUnavailable, http.StatusServiceUnavailable, MessageServiceUnavailable},
	{identitydomain.ErrIdentifierMissing, http.StatusBadRequest, MessageValidation},
	{identitydomain.ErrIdentifierAmbiguous, http.StatusBadRequest, MessageValidation},
	{identitydomain.ErrInvalidEmail, http.StatusBadRequest, MessageValidation},
	{identitydomain.ErrInvalidUsername, http.StatusBadRequest, MessageValidation},
}

// StatusFor maps a service error to its HTTP status and message.
func StatusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.message
		}
	}
	if service.IsPolicyError(err) {
		return http.StatusBadRequest, MessageValidation
	}
	return http.StatusInternalServerError, MessageInternal
}

// WriteError renders err as {message} with its mapped status. Unmapped errors
// are logged and reported as INTERNAL_ERROR. Validation failures carry the
// human-readable reason in "detail".
func WriteError(c *gin.Context, err error) {
	status, message := StatusFor(err)
	switch {
	case status == http.StatusInternalServerError:
		log.Printf("auth handler: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"message": message})
	case message == MessageValidation:
		c.JSON(status, gin.H{"message": message, "detail": err.Error()})
	default:
		c.JSON(status, gin.H{"message": message})
	}
}
