package session

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

const defaultMinAccessTokenValidity = time.Second * 60

// State is the Blink login session that survives restarts: the account
// identifiers learnt at login and the OAuth token pair
type State struct {
	Email                  string
	ClientUUID             string
	AccountID              int64
	ClientID               int64
	Tier                   string
	MinAccessTokenValidity time.Duration

	// non-exported
	mu       sync.Mutex
	token    *oauth2.Token
	ctx      context.Context
	fileName string
}

// Version of state that we marshal/unmarshal
type stateMarshal struct {
	Email             string    `json:"email"`
	ClientUUID        string    `json:"client-uuid"`
	AccountID         int64     `json:"account-id"`
	ClientID          int64     `json:"client-id"`
	Tier              string    `json:"tier"`
	AccessToken       string    `json:"access-token"`
	AccessTokenExpiry time.Time `json:"access-token-expiry"`
	RefreshToken      string    `json:"refresh-token"`
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate tokens when stringified
func (s *State) String() string {
	var access, refresh string
	var expiry time.Time
	if t := s.Token(); t != nil {
		access, refresh, expiry = t.AccessToken, t.RefreshToken, t.Expiry
	}

	return fmt.Sprintf("Email [%s], ClientUUID [%s], AccountID [%d] ClientID [%d] Tier [%s]  accessToken: [%s]  accessTokenExpiry [%s]  refreshToken [%s]",
		s.Email, s.ClientUUID, s.AccountID, s.ClientID, s.Tier,
		hashOf(access), expiry, hashOf(refresh))
}

// NewState returns an empty session with a freshly generated client UUID
func NewState() *State {
	return &State{
		ClientUUID:             uuid.New().String(),
		ctx:                    context.Background(),
		MinAccessTokenValidity: defaultMinAccessTokenValidity,
	}
}

func (s *State) WithContext(ctx context.Context) *State {
	s.ctx = ctx
	return s
}

// Token returns a copy of the current token, or nil before login
func (s *State) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// Valid reports whether the access token is usable for at least
// MinAccessTokenValidity more
func (s *State) Valid() bool {
	t := s.Token()
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}

	return t.Expiry.After(time.Now().Add(s.MinAccessTokenValidity))
}

// SetToken replaces the token and writes the state back to its file, if
// it was loaded from or saved to one
func (s *State) SetToken(t *oauth2.Token) error {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()

	return s.save()
}

func (s *State) Save(fileName string) error {
	sm := stateMarshal{
		Email:      s.Email,
		ClientUUID: s.ClientUUID,
		AccountID:  s.AccountID,
		ClientID:   s.ClientID,
		Tier:       s.Tier,
	}
	if t := s.Token(); t != nil {
		sm.AccessToken = t.AccessToken
		sm.AccessTokenExpiry = t.Expiry
		sm.RefreshToken = t.RefreshToken
	}

	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening blink session %s for write", fileName)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sm); err != nil {
		return errors.Wrapf(err, "saving blink session to %s", fileName)
	}

	// Store for later use
	s.fileName = fileName
	return nil
}

func (s *State) save() error {
	if s.fileName != "" {
		return s.Save(s.fileName)
	}

	logging.Logger(s.ctx).Warn("cannot save blink session, no file name available")
	return nil
}

func (s *State) Load(fileName string) error {
	sm := stateMarshal{}

	file, err := os.OpenFile(fileName, os.O_RDONLY, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening blink session %s for read", fileName)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&sm); err != nil {
		return errors.Wrapf(err, "loading blink session from %s", fileName)
	}

	s.Email = sm.Email
	s.AccountID = sm.AccountID
	s.ClientID = sm.ClientID
	s.Tier = sm.Tier
	if sm.ClientUUID != "" {
		s.ClientUUID = sm.ClientUUID
	}
	if sm.AccessToken != "" {
		s.mu.Lock()
		s.token = &oauth2.Token{
			AccessToken:  sm.AccessToken,
			RefreshToken: sm.RefreshToken,
			Expiry:       sm.AccessTokenExpiry,
			TokenType:    "Bearer",
		}
		s.mu.Unlock()
	}

	// Store for later use
	s.fileName = fileName

	return nil
}

// LoadOrNew loads the session file if it exists, else returns a new
// session that will be saved to fileName
func LoadOrNew(fileName string) (*State, error) {
	s := NewState()
	if fileName == "" {
		return s, nil
	}

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		s.fileName = fileName
		return s, nil
	}

	if err := s.Load(fileName); err != nil {
		return nil, err
	}

	return s, nil
}
