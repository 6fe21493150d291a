package blinkapi

import (
	"context"
	"time"
)

// Credentials used for the password grant.  PIN is only needed when the
// account asks for the client to be verified.
type Credentials struct {
	Email    string
	Password string
	PIN      string
}

// Client is the Blink account API.  The maxAge arguments allow a cached
// response no older than maxAge to be returned; zero always goes to the
// network.
type Client interface {
	WithTimeout(d time.Duration) Client

	Login(ctx context.Context, creds Credentials) error
	VerifyPIN(ctx context.Context, creds Credentials, pin string) error

	AccountSnapshot(ctx context.Context, maxAge time.Duration) (*Homescreen, error)
	CommandStatus(ctx context.Context, networkID, commandID int64) (*Command, error)

	ArmNetwork(ctx context.Context, networkID int64) (*Command, error)
	DisarmNetwork(ctx context.Context, networkID int64) (*Command, error)
	EnableCameraMotion(ctx context.Context, networkID, cameraID int64) (*Command, error)
	DisableCameraMotion(ctx context.Context, networkID, cameraID int64) (*Command, error)
	UpdateCameraThumbnail(ctx context.Context, networkID, cameraID int64) (*Command, error)

	CameraStatus(ctx context.Context, networkID, cameraID int64, maxAge time.Duration) (*CameraStatus, error)
	MediaChanges(ctx context.Context) (*MediaChanges, error)
	FetchBinary(ctx context.Context, path string) ([]byte, error)
}
