package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/htol/techlib/book"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	me, err := h.svc.Me(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, me)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProfile(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in book.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), principalFrom(r.Context()).UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// favoriteState is the body of the favorite check and toggle endpoints.
type favoriteState struct {
	BookID   string `json:"book_id"`
	Favorite bool   `json:"favorite"`
}

func (h *handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.svc.ListFavorites(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, favs)
}

func (h *handler) getFavorite(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	ok, err := h.svc.IsFavorite(r.Context(), principalFrom(r.Context()).UserID, bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, favoriteState{BookID: bookID, Favorite: ok})
}

func (h *handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	fav, created, err := h.svc.AddFavorite(r.Context(), principalFrom(r.Context()).UserID, chi.URLParam(r, "bookID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, fav)
}

func (h *handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveFavorite(r.Context(), principalFrom(r.Context()).UserID, chi.URLParam(r, "bookID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	on, err := h.svc.ToggleFavorite(r.Context(), principalFrom(r.Context()).UserID, bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, favoriteState{BookID: bookID, Favorite: on})
}
