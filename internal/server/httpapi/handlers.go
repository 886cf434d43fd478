package httpapi

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/vipclub/internal/server/models"
)

type messageResponse struct {
	Message string `json:"message"`
}

type signupRequest struct {
	User struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"user"`
	VIP *models.VIP `json:"vip"`
}

type signupResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userid"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type barcodeURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

// formCredentials reads the username and password form fields. A missing
// field is a validation error; an empty one is left to the service.
func formCredentials(r *http.Request) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("malformed form body: %w", err)
	}
	for _, field := range []string{"username", "password"} {
		if _, ok := r.PostForm[field]; !ok {
			return "", "", fmt.Errorf("field required: %s", field)
		}
	}
	return r.PostForm.Get("username"), r.PostForm.Get("password"), nil
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	username, password, err := formCredentials(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := h.users.Register(r.Context(), username, password); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully"})
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed JSON body")
		return
	}
	if req.VIP == nil {
		writeError(w, http.StatusUnprocessableEntity, "field required: vip")
		return
	}

	u, err := h.users.Signup(r.Context(), req.User.Username, req.User.Password, req.VIP)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, signupResponse{Message: "User and VIP registered", UserID: u.ID})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	username, password, err := formCredentials(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res, err := h.users.Login(r.Context(), username, password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   res.ExpiresIn,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	d, err := h.users.Dashboard(r.Context(), id.Username)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) barcode(w http.ResponseWriter, r *http.Request) {
	vip, ok := h.membership(w, r)
	if !ok {
		return
	}

	img, err := h.barcodes.PNG(r.Context(), vip.Code)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": vip.Code + ".png"}))
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *handlers) barcodeURL(w http.ResponseWriter, r *http.Request) {
	vip, ok := h.membership(w, r)
	if !ok {
		return
	}

	url, ttl, err := h.barcodes.PresignedURL(r.Context(), vip.Code)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, barcodeURLResponse{URL: url, ExpiresIn: int64(ttl.Seconds())})
}

func (h *handlers) membership(w http.ResponseWriter, r *http.Request) (*models.VIP, bool) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return nil, false
	}

	vip, err := h.users.Membership(r.Context(), id.Username)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return nil, false
	}
	return vip, true
}
