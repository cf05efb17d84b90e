package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		App     string `json:"app"`
	}{
		Status:  "healthy",
		Version: version,
		App:     appName,
	}
	writeJSON(w, http.StatusOK, health)
}

func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	// Credentials arrive as query parameters, kept for wire compatibility
	// with existing clients.
	username := r.URL.Query().Get("username")
	password := r.URL.Query().Get("password")

	token, err := app.authenticate(username, password)
	if err != nil {
		app.logger.Warn("failed login attempt", zap.String("username", username))
		writeError(w, errInvalidCredentials, http.StatusUnauthorized)
		return
	}

	app.logger.Info("user logged in", zap.String("username", username))
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (app *application) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Completed   bool   `json:"completed"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkTitle(input.Title)
	v.checkDescription(input.Description)
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusUnprocessableEntity)
		return
	}

	t := app.store.create(input.Title, input.Description, input.Completed)
	subject := subjectFromRequest(r)
	app.publisher.publish(newEvent(eventCreated, t, subject))

	app.logger.Info("todo created", zap.Int("id", t.ID), zap.String("user", subject))
	writeJSON(w, http.StatusCreated, t)
}

func (app *application) getTodosHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.store.list())
}

func (app *application) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, errNotFound, http.StatusNotFound)
		return
	}
	t, err := app.store.get(id)
	if err != nil {
		writeError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (app *application) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, errNotFound, http.StatusNotFound)
		return
	}
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Completed   bool   `json:"completed"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkTitle(input.Title)
	v.checkDescription(input.Description)
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusUnprocessableEntity)
		return
	}

	t, err := app.store.update(id, input.Title, input.Description, input.Completed)
	if err != nil {
		writeError(w, err, http.StatusNotFound)
		return
	}
	subject := subjectFromRequest(r)
	app.publisher.publish(newEvent(eventUpdated, t, subject))

	app.logger.Info("todo updated", zap.Int("id", t.ID), zap.String("user", subject))
	writeJSON(w, http.StatusOK, t)
}

func (app *application) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, errNotFound, http.StatusNotFound)
		return
	}
	t, err := app.store.delete(id)
	if err != nil {
		writeError(w, err, http.StatusNotFound)
		return
	}
	subject := subjectFromRequest(r)
	app.publisher.publish(newEvent(eventDeleted, t, subject))

	app.logger.Info("todo deleted", zap.Int("id", t.ID), zap.String("user", subject))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		writeError(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func composeJSONError(err error) string {
	jsonError := map[string]string{
		"error": err.Error(),
	}
	result, err := json.Marshal(jsonError)
	if err != nil {
		return `{"error":"internal server error"}`
	}
	return string(result)
}

func writeError(w http.ResponseWriter, err error, statusCode int) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintln(w, composeJSONError(err))
}
