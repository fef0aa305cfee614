// internal/domain/persistence/adapter.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/domain/session"
)

// Version is the blob schema version written by this build
const Version = 1

// Blob names
const (
	CartBlob     = "cart"
	WishlistBlob = "wishlist"
)

// ErrMiss is returned by a LocalStore when no blob is stored under the key
var ErrMiss = errors.New("local blob missing")

// LocalStore is the device cache tier
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Adapter reads and writes named state blobs in the tier selected by a scope.
// It never retries and never falls back on its own.
type Adapter struct {
	local  LocalStore
	remote docstore.Store
	log    *logrus.Entry
}

// NewAdapter creates a new persistence adapter
func NewAdapter(local LocalStore, remote docstore.Store, log *logrus.Entry) *Adapter {
	return &Adapter{
		local:  local,
		remote: remote,
		log:    log.WithField("component", "persistence"),
	}
}

// LocalKey is the device cache key of a blob
func LocalKey(deviceID, name string) string {
	return fmt.Sprintf("session:%s:%s", deviceID, name)
}

// RemotePath is the remote document path of a user's blob
func RemotePath(userID, name string) string {
	return fmt.Sprintf("users/%s/state/%s", userID, name)
}

type versionProbe struct {
	Version int `json:"version"`
}

// Load decodes the blob into dst. found is false for absent, unparseable or
// newer-version blobs; only transport errors are returned.
func (a *Adapter) Load(ctx context.Context, scope session.Scope, name string, dst any) (bool, error) {
	raw, err := a.read(ctx, scope, name)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	entry := a.log.WithFields(logrus.Fields{"scope": scope.String(), "blob": name})

	var probe versionProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		entry.WithError(err).Warn("Discarding unparseable state blob")
		return false, nil
	}
	if probe.Version > Version {
		entry.WithField("version", probe.Version).Warn("Discarding state blob from a newer schema")
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		entry.WithError(err).Warn("Discarding unparseable state blob")
		return false, nil
	}
	return true, nil
}

func (a *Adapter) read(ctx context.Context, scope session.Scope, name string) ([]byte, error) {
	if !scope.IsRemote() {
		data, err := a.local.Get(ctx, LocalKey(scope.DeviceID, name))
		if errors.Is(err, ErrMiss) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read local %s blob: %w", name, err)
		}
		return data, nil
	}

	doc, err := a.remote.GetDocument(ctx, RemotePath(scope.UserID, name))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read remote %s blob: %w", name, err)
	}

	data, err := json.Marshal(doc.Data)
	if err != nil {
		a.log.WithError(err).Warn("Remote state document is not JSON encodable")
		return nil, nil
	}
	return data, nil
}

// Save writes state to the tier selected by scope
func (a *Adapter) Save(ctx context.Context, scope session.Scope, name string, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode %s blob: %w", name, err)
	}

	if !scope.IsRemote() {
		if err := a.local.Set(ctx, LocalKey(scope.DeviceID, name), data); err != nil {
			return fmt.Errorf("failed to write local %s blob: %w", name, err)
		}
		return nil
	}

	var patch map[string]any
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("failed to encode %s blob: %w", name, err)
	}
	patch["updatedAt"] = time.Now().UTC()

	if err := a.remote.SetDocumentMerge(ctx, RemotePath(scope.UserID, name), patch); err != nil {
		return fmt.Errorf("failed to write remote %s blob: %w", name, err)
	}
	return nil
}

// Remote exposes the remote store for components that write documents directly
func (a *Adapter) Remote() docstore.Store {
	return a.remote
}
