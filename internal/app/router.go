package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/berniyo/paycollect/internal/controllers"
	"github.com/berniyo/paycollect/internal/routes"
)

// NewRouter maps the collection endpoints. Unknown paths and unsupported
// methods both answer 404.
func NewRouter(ctrl *controllers.CollectionController, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(routes.Home, ctrl.Home).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc(routes.Start, ctrl.Start).Methods(http.MethodPost)
	router.HandleFunc(routes.Callback, ctrl.Callback).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(notFound)

	// An empty origin list would make rs/cors allow every origin.
	if len(allowedOrigins) == 0 {
		return router
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not Found"))
}
