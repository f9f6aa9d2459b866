package routing

import (
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/guestwave/console-auth/internal/errors"
)

// ActivationFunc renders or activates the view for a path. A non-nil error or
// a panic marks the activation as failed; the previously active view is left
// untouched.
type ActivationFunc func(path string) error

// Registry maps paths to view activations. Routes are registered once at
// startup and looked up on every navigation.
type Registry struct {
	defaultPath string
	logger      *slog.Logger

	mu          sync.RWMutex
	routes      map[string]ActivationFunc
	currentPath string
}

// NewRegistry constructs a Registry. Dispatches for unregistered paths fall
// back to defaultPath.
func NewRegistry(defaultPath string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defaultPath: normalizePath(defaultPath),
		logger:      logger,
		routes:      make(map[string]ActivationFunc),
	}
}

// Register binds a path to an activation callback. Paths are unique;
// re-registration fails rather than silently overwriting.
func (r *Registry) Register(path string, activate ActivationFunc) error {
	path = normalizePath(path)
	if path == "" {
		return apperrors.New(apperrors.ErrCodeInternal, "route path cannot be empty")
	}
	if activate == nil {
		return apperrors.Newf(apperrors.ErrCodeInternal, "route %q requires an activation callback", path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[path]; exists {
		return apperrors.Newf(apperrors.ErrCodeDuplicateRoute, "route %q is already registered", path)
	}
	r.routes[path] = activate
	return nil
}

// Dispatch activates the view for path, falling back to the default path when
// the path is unregistered. A callback error or panic is logged and reported
// as an activation failure; the current path is updated only on success, so a
// failed activation never replaces the previously displayed view.
func (r *Registry) Dispatch(path string) error {
	path = normalizePath(path)

	r.mu.RLock()
	activate, ok := r.routes[path]
	if !ok {
		path = r.defaultPath
		activate, ok = r.routes[path]
	}
	r.mu.RUnlock()

	if !ok {
		return apperrors.Newf(apperrors.ErrCodeActivationFailed, "no route registered for %q and no default route", path)
	}

	if err := r.activate(activate, path); err != nil {
		r.logger.Error("route activation failed", "path", path, "error", err)
		return apperrors.Wrapf(err, apperrors.ErrCodeActivationFailed, "activate route %q", path)
	}

	r.mu.Lock()
	r.currentPath = path
	r.mu.Unlock()
	return nil
}

// CurrentPath returns the path of the last successful activation, or empty
// before the first dispatch.
func (r *Registry) CurrentPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentPath
}

// Routes returns the registered paths, unordered.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	return paths
}

// activate invokes a callback with panic recovery.
func (r *Registry) activate(fn ActivationFunc, path string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(path)
}
