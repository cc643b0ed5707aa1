package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/auth"
	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/policy"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// operatorSubject is the token subject for admin passcode logins.
const operatorSubject = "operator"

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Passcode string `json:"passcode"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin exchanges the admin passcode for an operator token.
// Repeated failures from one address lock it out for a while.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := s.authenticate(clientAddr(r), req.Passcode)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrThrottled):
		w.Header().Set("Retry-After", strconv.Itoa(int(loginLockout.Seconds())))
		writeError(w, http.StatusTooManyRequests, ErrCodeThrottled, "too many failed attempts")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
		return
	case errors.Is(err, policy.ErrAdminPasscodeNotSet):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "admin passcode not configured")
		return
	default:
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int(token.ExpiresIn.Seconds()),
	})
}

// authenticate checks code against the admin passcode on behalf of client.
//
// Returns:
//   - auth.Token: Signed operator token on success
//   - error: auth.ErrThrottled, auth.ErrInvalidCredentials,
//     policy.ErrAdminPasscodeNotSet or a signing failure
func (s *Server) authenticate(client, code string) (auth.Token, error) {
	if !s.throttle.Allow(client) {
		return auth.Token{}, auth.ErrThrottled
	}

	ok, err := s.policy.VerifyAdminPasscode(code)
	if err != nil {
		return auth.Token{}, err
	}
	if !ok {
		locked := s.throttle.Fail(client)
		e := events.Event{
			Kind:    events.KindSystem,
			Outcome: "login_failed",
			Source:  "api",
			Message: "operator login failed from " + client,
		}
		if locked {
			e.Outcome = "login_locked"
			e.Level = events.LevelDanger
			e.Message = "operator login locked out for " + client
		}
		s.events.Post(e)
		s.logger.Warn("operator login rejected", "client", client, "locked", locked)
		return auth.Token{}, auth.ErrInvalidCredentials
	}
	s.throttle.Succeed(client)

	token, err := auth.GenerateToken(operatorSubject, auth.RoleAdmin, s.site,
		s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		return auth.Token{}, fmt.Errorf("issuing operator token: %w", err)
	}
	s.events.Post(events.Event{
		Kind:    events.KindSystem,
		Outcome: "login",
		Source:  "api",
		Message: "operator logged in from " + client,
	})
	return token, nil
}

// handleWSTicket issues a single-use WebSocket ticket so the JWT never
// appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]time.Time
	now     func() time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]time.Time),
		now:     time.Now,
	}
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

func (t *ticketStore) issue() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	ticket := hex.EncodeToString(b)

	t.mu.Lock()
	t.tickets[ticket] = t.now().Add(ticketTTL)
	t.mu.Unlock()
	return ticket
}

// redeem consumes ticket and reports whether it was valid.
func (t *ticketStore) redeem(ticket string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	expires, ok := t.tickets[ticket]
	if !ok {
		return false
	}
	delete(t.tickets, ticket)
	return t.now().Before(expires)
}

func (t *ticketStore) clean() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ticket, expires := range t.tickets {
		if !now.Before(expires) {
			delete(t.tickets, ticket)
		}
	}
}
