package ornode

import (
	"net/http"
	"time"

	"github.com/fractalrespect/orecx/app/ornode/controller"
	"github.com/fractalrespect/orecx/app/ornode/types"
	"go.uber.org/zap"
)

// NewServer creates the HTTP server of app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	app.Server = &http.Server{
		Addr:              app.Addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", app.Addr))

	return nil
}
