package main

import (
	"net/http"
)

func composeRoutes(app *application) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", app.healthCheckHandler)
	mux.HandleFunc("POST /auth/login", app.loginHandler)

	mux.HandleFunc("POST /todos", app.requireAuth(app.createTodoHandler))
	mux.HandleFunc("GET /todos", app.requireAuth(app.getTodosHandler))
	mux.HandleFunc("GET /todos/{id}", app.requireAuth(app.getTodoHandler))
	mux.HandleFunc("PUT /todos/{id}", app.requireAuth(app.updateTodoHandler))
	mux.HandleFunc("DELETE /todos/{id}", app.requireAuth(app.deleteTodoHandler))

	var handler http.Handler = app.enableCORS(mux)
	if app.config.limiter.enabled {
		handler = app.rateLimit(handler)
	}
	return handler
}
