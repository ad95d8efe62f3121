package app

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/internal/observability"
	"github.com/helios-erp/helios/internal/permissions"
	"github.com/helios-erp/helios/internal/platform/httpx"
	"github.com/helios-erp/helios/internal/subscription"
	"github.com/helios-erp/helios/internal/users"
	"github.com/helios-erp/helios/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Registry           *extensions.Registry
	Sessions           *users.SessionStore
	UsersHandler       *users.Handler
	ExtensionsHandler  *extensions.Handler
	PermissionsHandler *permissions.Handler
	PermissionsMW      permissions.Middleware
	SubscriptionHdlr   *subscription.Handler
	Subscriptions      *subscription.Checker
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter assembles the host router: health and metrics, the admin
// surface, and a placeholder for extension-contributed routes.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}
	if p.Sessions != nil {
		r.Use(users.Authenticate(p.Sessions))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	if p.UsersHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			p.UsersHandler.MountAuthRoutes(r)
		})
	}

	r.Route("/admin", func(r chi.Router) {
		if p.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				r.Use(p.PermissionsMW.RequireAny("core.manage_users"))
				p.UsersHandler.MountAdminRoutes(r)
			})
		}
		r.Route("/extensions", func(r chi.Router) {
			r.Use(p.PermissionsMW.RequireAny("core.manage_extensions"))
			p.ExtensionsHandler.MountRoutes(r)
		})
		r.Route("/permissions", func(r chi.Router) {
			r.Use(p.PermissionsMW.RequireAny("core.manage_roles"))
			p.PermissionsHandler.MountRoutes(r)
		})
		if p.SubscriptionHdlr != nil {
			r.Route("/subscriptions", func(r chi.Router) {
				r.Use(p.PermissionsMW.RequireAny("core.manage_extensions"))
				p.SubscriptionHdlr.MountRoutes(r)
			})
		}
		if p.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				p.JobHandler.MountRoutes(r)
			})
		}
	})

	if p.Registry != nil {
		mountExtensionRoutes(r, p)
	}

	return r
}

// mountExtensionRoutes publishes each loaded extension under /x plus its
// declared URL prefix, gated by the entitlement check for paid kinds.
// Routes are fixed at startup; lifecycle changes surface after a restart.
func mountExtensionRoutes(r chi.Router, p RouterParams) {
	r.Route("/x", func(r chi.Router) {
		seen := make(map[string]string)
		for _, id := range p.Registry.IDs() {
			ext, ok := p.Registry.Get(id)
			if !ok || ext.Manifest.Menu.URLPrefix == "" {
				continue
			}
			prefix := ext.Manifest.Menu.URLPrefix
			if owner, taken := seen[prefix]; taken {
				p.Logger.Warn("extension url prefix already taken, skipping routes",
					slog.String("extension", id), slog.String("owner", owner), slog.String("prefix", prefix))
				continue
			}
			seen[prefix] = id
			manifest := ext.Manifest
			path := ext.Path
			r.Route(prefix, func(r chi.Router) {
				if p.Subscriptions != nil {
					r.Use(subscription.Require(p.Subscriptions, manifest.ID, manifest.Kind))
				}
				r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
					httpx.JSON(w, http.StatusOK, map[string]any{
						"extension_id": manifest.ID,
						"name":         manifest.Name,
						"version":      manifest.Version,
						"menu":         manifest.Menu,
					})
				})
				fileServer := http.StripPrefix("/x"+prefix+"/static/",
					http.FileServer(http.Dir(filepath.Join(path, "static"))))
				r.Handle("/static/*", fileServer)
			})
		}
	})
}
