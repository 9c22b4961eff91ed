package controller

import (
	"net/http"

	"github.com/fractalrespect/orecx/app/ornode/types"
	"github.com/fractalrespect/orecx/pkg/rpc"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle(rpc.HealthPath, http.HandlerFunc(c.HandleHealth)).Methods("GET")
	if c.App.Registry != nil {
		r.Handle(rpc.MetricsPath, promhttp.HandlerFor(c.App.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	r.HandleFunc(rpc.PutProposalPath, c.PutProposal).Methods("POST")
	r.HandleFunc(rpc.GetProposalPath, c.GetProposal).Methods("POST")
	r.HandleFunc(rpc.GetProposalsPath, c.GetProposals).Methods("POST")
	r.HandleFunc(rpc.GetPeriodNumPath, c.GetPeriodNum).Methods("GET")
	r.HandleFunc(rpc.WebsocketPath, c.HandleWebSocket).Methods("GET")

	return r, nil
}

// WithCORS allows browser frontends on any origin.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
