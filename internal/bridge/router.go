package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/gajzzs/xstorage/internal/volume"
)

// Method names understood by the router. The camel-case aliases keep the
// names host applications already call.
const (
	MethodSDCardPath      = "get-sd-card-path"
	MethodUSBPaths        = "get-usb-storage-paths"
	MethodInternalPaths   = "get-internal-storage-paths"
	MethodPlatformVersion = "get-platform-version"
)

var aliases = map[string]string{
	"getSDCardStorageDirectory": MethodSDCardPath,
	"getUSBStorageDirectories":  MethodUSBPaths,
	"getPlatformVersion":        MethodPlatformVersion,
}

// Error is a reported condition the caller can act on, as opposed to a
// failure of the bridge itself.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

var (
	// ErrSDCardNotFound reports that no SD card volume is mounted.
	ErrSDCardNotFound = &Error{Code: "SDCardNotFound", Message: "No SD card available"}

	// ErrNotImplemented is returned for methods the router does not know.
	ErrNotImplemented = errors.New("not implemented")
)

// Storage is the classification surface the router exposes.
type Storage interface {
	FindPaths(ctx context.Context, cat volume.Category) []string
	FirstSDPath(ctx context.Context) (string, bool)
}

// VersionFunc reports the host platform version.
type VersionFunc func(ctx context.Context) (int, error)

// Router maps method names onto storage queries.
type Router struct {
	storage Storage
	version VersionFunc
	log     *zap.Logger
}

// NewRouter creates a router. A nil version func leaves get-platform-version
// unimplemented.
func NewRouter(storage Storage, version VersionFunc, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{storage: storage, version: version, log: log}
}

// Call runs one method. Success values are a string, a []string or an int.
// Failures are either an *Error or ErrNotImplemented.
func (r *Router) Call(ctx context.Context, method string, args map[string]any) (any, error) {
	if canonical, ok := aliases[method]; ok {
		method = canonical
	}

	switch method {
	case MethodSDCardPath:
		path, ok := r.storage.FirstSDPath(ctx)
		if !ok {
			return nil, ErrSDCardNotFound
		}
		return path, nil

	case MethodUSBPaths:
		return r.storage.FindPaths(ctx, volume.CategoryUSB), nil

	case MethodInternalPaths:
		return r.storage.FindPaths(ctx, volume.CategoryInternal), nil

	case MethodPlatformVersion:
		if r.version == nil {
			return nil, ErrNotImplemented
		}
		v, err := r.version(ctx)
		if err != nil {
			r.log.Warn("platform version unavailable", zap.Error(err))
			return nil, &Error{Code: "PlatformVersionUnavailable", Message: err.Error()}
		}
		return v, nil
	}

	r.log.Debug("unknown bridge method", zap.String("method", method), zap.Int("args", len(args)))
	return nil, ErrNotImplemented
}

// Handle answers one request.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}

	result, err := r.Call(ctx, req.Method, req.Args)
	var reported *Error
	switch {
	case err == nil:
		resp.Result = result
	case errors.Is(err, ErrNotImplemented):
		resp.NotImplemented = true
	case errors.As(err, &reported):
		resp.Error = reported
	default:
		resp.Error = &Error{Code: "InternalError", Message: err.Error()}
	}
	return resp
}
