package bizengine

import (
	"html"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/bizengine/mailer"
)

// ContactInput is the contact form payload.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{6,20}$`)

	// Payloads matching any of these are rejected outright rather than
	// sanitized, since a legitimate inquiry never contains script markup.
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?is)<iframe[^>]*>`),
	}
)

func containsMarkup(fields ...string) bool {
	for _, f := range fields {
		for _, p := range xssPatterns {
			if p.MatchString(f) {
				return true
			}
		}
	}
	return false
}

func validateContact(in *ContactInput) map[string]string {
	fields := map[string]string{}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	switch n := utf8.RuneCountInString(in.Name); {
	case n < 2 || n > 100:
		fields["name"] = "name must be between 2 and 100 characters"
	case !namePattern.MatchString(in.Name):
		fields["name"] = "name can only contain letters and spaces"
	}

	if in.Email == "" || len(in.Email) > 254 {
		fields["email"] = "a valid email address is required"
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "a valid email address is required"
	}

	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		fields["phone"] = "phone number format is invalid"
	}

	if n := utf8.RuneCountInString(in.Subject); n < 5 || n > 200 {
		fields["subject"] = "subject must be between 5 and 200 characters"
	}
	if n := utf8.RuneCountInString(in.Message); n < 10 || n > 2000 {
		fields["message"] = "message must be between 10 and 2000 characters"
	}

	if containsMarkup(in.Name, in.Subject, in.Message) {
		fields["message"] = "message contains disallowed content"
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// sanitizeContact escapes HTML metacharacters so the values are safe to embed
// in the outgoing HTML mail bodies.
func sanitizeContact(in *ContactInput) {
	in.Name = html.EscapeString(in.Name)
	in.Subject = html.EscapeString(in.Subject)
	in.Message = html.EscapeString(in.Message)
	in.Phone = html.EscapeString(in.Phone)
}

// handleContact validates a contact submission and relays it by mail.
func (a *App) handleContact(c echo.Context) error {
	ip := c.RealIP()
	if !a.ContactLimiter.Allow(ip) {
		return respondError(c, http.StatusTooManyRequests, codeRateLimited,
			"too many contact requests from this IP, try again later")
	}

	var in ContactInput
	if err := c.Bind(&in); err != nil {
		return respondValidation(c, map[string]string{"body": "request body must be valid JSON"})
	}
	if fields := validateContact(&in); fields != nil {
		return respondValidation(c, fields)
	}
	sanitizeContact(&in)

	res, err := a.Mailer.Dispatch(c.Request().Context(), mailer.Submission{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Subject: in.Subject,
		Message: in.Message,
	})
	if err != nil {
		a.Log.Error("contact dispatch failed",
			zap.String("ip", ip),
			zap.Int("attempts", res.Attempts),
			zap.Error(err))
		return respondError(c, http.StatusServiceUnavailable, codeEmailService,
			"failed to send message, please try again later")
	}

	a.Log.Info("contact message relayed",
		zap.String("ip", ip),
		zap.String("message_id", res.MessageID),
		zap.Bool("confirmation_sent", res.ConfirmationSent),
		zap.Int("attempts", res.Attempts))

	return respondMessage(c, http.StatusOK, "message sent successfully", map[string]any{
		"messageId":        res.MessageID,
		"confirmationSent": res.ConfirmationSent,
	})
}

// handleContactStatus reports whether the mail transport is reachable.
func (a *App) handleContactStatus(c echo.Context) error {
	err := a.Mailer.Verify(c.Request().Context())
	status := map[string]any{
		"service":  "contact",
		"smtpOk":   err == nil,
		"rateInfo": map[string]any{"max": a.Config.RateLimit.ContactMax, "window": a.Config.RateLimit.ContactWindow.String()},
	}
	if err != nil {
		a.Log.Warn("smtp verify failed", zap.Error(err))
	}
	return respondData(c, http.StatusOK, status)
}
