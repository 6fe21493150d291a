package blinkapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jake-scott/blink-homekit/internal/pkg/session"
)

func loggedInSession(t *testing.T) *session.State {
	s := session.NewState()
	s.AccountID = 42
	s.Tier = "test"
	require.NoError(t, s.Save(filepath.Join(t.TempDir(), "session.json")))
	require.NoError(t, s.SetToken(&oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}))
	return s
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAccountSnapshotHonoursMaxAge(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/accounts/42/homescreen", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		atomic.AddInt32(&hits, 1)
		writeJSON(w, map[string]interface{}{
			"networks": []map[string]interface{}{{"id": 1, "name": "Home", "armed": true}},
			"cameras":  []map[string]interface{}{{"id": 10, "network_id": 1, "name": "Door"}},
		})
	}))
	defer srv.Close()

	c := NewLiveClient(loggedInSession(t)).WithBaseURL(srv.URL)
	ctx := context.Background()

	hs, err := c.AccountSnapshot(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, hs.Networks, 1)
	assert.Equal(t, "Home", hs.Networks[0].Name)
	assert.True(t, hs.Networks[0].Armed)
	require.Len(t, hs.Cameras, 1)
	assert.Equal(t, int64(1), hs.Cameras[0].NetworkID)

	_, err = c.AccountSnapshot(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second read within max age is cached")

	_, err = c.AccountSnapshot(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "zero max age always fetches")
}

func TestCameraStatusOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/network/1/camera/10", r.URL.Path)
		writeJSON(w, map[string]interface{}{
			"camera_status": map[string]interface{}{"camera_id": 10, "battery_voltage": 162},
		})
	}))
	defer srv.Close()

	c := NewLiveClient(loggedInSession(t)).WithBaseURL(srv.URL)

	st, err := c.CameraStatus(context.Background(), 1, 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(162), st.Voltage())
	assert.Nil(t, st.WifiStrength)
	assert.Equal(t, int64(0), st.Wifi())
}

func TestCommandsAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/accounts/42/networks/1/state/arm":
			assert.Equal(t, http.MethodPost, r.Method)
			writeJSON(w, map[string]interface{}{"id": 99, "network_id": 1})
		case "/network/1/command/99":
			writeJSON(w, map[string]interface{}{"id": 99, "network_id": 1, "complete": true})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
		}
	}))
	defer srv.Close()

	c := NewLiveClient(loggedInSession(t)).WithBaseURL(srv.URL)
	ctx := context.Background()

	cmd, err := c.ArmNetwork(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cmd.ID)
	assert.Equal(t, int64(1), cmd.NetworkID)

	cmd, err = c.CommandStatus(ctx, 1, 99)
	require.NoError(t, err)
	assert.True(t, cmd.Complete)

	_, err = c.DisarmNetwork(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestNotLoggedIn(t *testing.T) {
	c := NewLiveClient(session.NewState()).WithBaseURL("http://127.0.0.1:1")

	_, err := c.AccountSnapshot(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogin(t *testing.T) {
	var pinSeen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			assert.Equal(t, "me@example.com", r.PostForm.Get("username"))
			assert.NotEmpty(t, r.Header.Get("hardware_id"))

			pinSeen = r.Header.Get("2fa-code")
			if pinSeen == "" {
				w.WriteHeader(http.StatusPreconditionFailed)
				writeJSON(w, map[string]interface{}{"tsv_state": "sms"})
				return
			}
			writeJSON(w, map[string]interface{}{
				"access_token":  "new-access",
				"refresh_token": "new-refresh",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		case "/api/v1/users/tier_info":
			assert.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
			writeJSON(w, map[string]interface{}{"tier": "u011", "account_id": 7})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := session.NewState()
	file := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, s.Save(file))

	c := NewLiveClient(s).WithBaseURL(srv.URL).WithTokenURL(srv.URL + "/oauth/token")
	creds := Credentials{Email: "me@example.com", Password: "secret"}
	ctx := context.Background()

	err := c.Login(ctx, creds)
	assert.Equal(t, ErrVerificationRequired, err)

	require.NoError(t, c.VerifyPIN(ctx, creds, "123456"))
	assert.Equal(t, "123456", pinSeen)
	assert.Equal(t, int64(7), s.AccountID)
	assert.Equal(t, "u011", s.Tier)
	assert.Equal(t, "new-access", s.Token().AccessToken)

	reloaded := session.NewState()
	require.NoError(t, reloaded.Load(file))
	assert.Equal(t, "me@example.com", reloaded.Email)
	assert.Equal(t, "new-refresh", reloaded.Token().RefreshToken)
	assert.Equal(t, s.ClientUUID, reloaded.ClientUUID)
}
