package api

import (
	"github.com/go-chi/chi/v5"

	"kba-plugin/internal/auth"
	"kba-plugin/internal/config"
	"kba-plugin/internal/kernel"
)

// API exposes every entity registered with the kernel over HTTP.
type API struct {
	Kernel  *kernel.Kernel
	Auth    *auth.Authenticator
	Routers *chi.Mux
}

func NewAPI(k *kernel.Kernel, cfg *config.Config) *API {
	a := &API{
		Kernel:  k,
		Auth:    auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.ClientID, cfg.Auth.ClientSecret),
		Routers: chi.NewRouter(),
	}
	a.routes()
	return a
}
