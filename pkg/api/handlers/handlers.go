package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cbodonnell/arcade/pkg/api/middleware"
	"github.com/cbodonnell/arcade/pkg/arcade"
	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/messages"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Arcade is the part of the instance manager the handlers use.
type Arcade interface {
	Create(ctx context.Context, owner arcade.Owner, kind game.Kind) (string, game.Update, error)
	Dispatch(ctx context.Context, owner arcade.Owner, id string, action game.Action) error
	Snapshot(ctx context.Context, owner arcade.Owner, id string) (game.Update, error)
	Info(owner arcade.Owner, id string) (arcade.Info, error)
	Close(ctx context.Context, owner arcade.Owner, id string) error
	Launcher(userID string) *arcade.Launcher
}

type InstanceResponse struct {
	ID         string      `json:"id"`
	Kind       game.Kind   `json:"kind"`
	CreatedAt  *time.Time  `json:"createdAt,omitempty"`
	LastActive *time.Time  `json:"lastActive,omitempty"`
	Update     game.Update `json:"update"`
}

type LastGameRequest struct {
	Kind game.Kind `json:"kind"`
}

type LastGameResponse struct {
	Kind game.Kind `json:"kind"`
}

// owner resolves the owner of a request. Requests without a browser session
// get a new one, returned in the session header.
func owner(w http.ResponseWriter, r *http.Request) arcade.Owner {
	uid, ok := middleware.UserFromContext(r.Context())
	if !ok || uid == "" {
		uid = arcade.AnonymousUser
	}
	session := r.Header.Get(middleware.SessionHeader)
	if session == "" {
		session = uuid.New().String()
	}
	w.Header().Set(middleware.SessionHeader, session)
	return arcade.Owner{UserID: uid, SessionID: session}
}

func HandleCreateInstance(a Arcade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := game.Kind(mux.Vars(r)["kind"])
		id, snapshot, err := a.Create(r.Context(), owner(w, r), kind)
		if err != nil {
			writeError(w, "failed to create instance", err)
			return
		}
		writeJSON(w, http.StatusCreated, &InstanceResponse{
			ID:     id,
			Kind:   kind,
			Update: snapshot,
		})
	}
}

func HandleGetInstance(a Arcade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		o := owner(w, r)
		info, err := a.Info(o, id)
		if err != nil {
			writeError(w, "failed to get instance", err)
			return
		}
		snapshot, err := a.Snapshot(r.Context(), o, id)
		if err != nil {
			writeError(w, "failed to get instance", err)
			return
		}
		writeJSON(w, http.StatusOK, &InstanceResponse{
			ID:         info.ID,
			Kind:       info.Kind,
			CreatedAt:  &info.CreatedAt,
			LastActive: &info.LastActive,
			Update:     snapshot,
		})
	}
}

// HandleDispatchAction applies an action and returns the resulting state.
// Actions sent over HTTP are never trusted.
func HandleDispatchAction(a Arcade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var action game.Action
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, messages.MessageBufferSize)).Decode(&action); err != nil {
			http.Error(w, "Failed to decode action", http.StatusBadRequest)
			return
		}

		o := owner(w, r)
		if err := a.Dispatch(r.Context(), o, id, action); err != nil {
			writeError(w, "failed to dispatch action", err)
			return
		}
		snapshot, err := a.Snapshot(r.Context(), o, id)
		if err != nil {
			writeError(w, "failed to get instance", err)
			return
		}
		writeJSON(w, http.StatusOK, &InstanceResponse{
			ID:     id,
			Kind:   snapshot.Kind,
			Update: snapshot,
		})
	}
}

func HandleDeleteInstance(a Arcade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.Close(r.Context(), owner(w, r), mux.Vars(r)["id"]); err != nil {
			writeError(w, "failed to delete instance", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleGetLastGame(a Arcade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o := owner(w, r)
		kind, ok, err := a.Launcher(o.UserID).LastGame(r.Context())
		if err != nil {
			writeError(w, "failed to get last game", err)
			return
		}
		if !ok {
			http.Error(w, "No last game", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, &LastGameResponse{Kind: kind})
	}
}

func HandlePutLastGame(a Arcade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LastGameRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, messages.MessageBufferSize)).Decode(&req); err != nil {
			http.Error(w, "Failed to decode last game", http.StatusBadRequest)
			return
		}
		o := owner(w, r)
		if err := a.Launcher(o.UserID).SetLastGame(r.Context(), req.Kind); err != nil {
			writeError(w, "failed to set last game", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, arcade.ErrInstanceNotFound):
		return http.StatusNotFound
	case arcade.IsUnknownKind(err), errors.Is(err, game.ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("%s: %v", msg, err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
