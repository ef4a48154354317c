package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitsense/internal/auth"
	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=users_test

const SessionTokenHeader = "X-FITSENSE-TOKEN"

type usersRepo interface {
	Add(ctx context.Context, user *User) (*User, error)
	Get(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type sessionService interface {
	Login(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type UserResponse struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user"`
}

type LoginResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}

type ValidateResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handler struct {
	repo     usersRepo
	sessions sessionService
}

func NewHandler(repo usersRepo, sessions sessionService) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
	}
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("register, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "Email, password, and name are required", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		pkg.WriteJSONError(w, "Email, password, and name are required", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(req.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		pkg.WriteJSONError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	user, err := handler.repo.Add(ctx, &User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			pkg.WriteJSONError(w, "User with this email already exists", http.StatusConflict)
			return
		}
		log.Errorf("register, add user: %s", err)
		pkg.WriteJSONError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	log.Debugf("new user registered: %d", user.ID)
	pkg.WriteJSON(w, UserResponse{
		Message: "User created successfully",
		User:    user,
	}, http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		pkg.WriteJSONError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		log.Errorf("login, get user: %s", err)
		pkg.WriteJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}
	if user == nil || !pkg.CheckPasswordHash(req.Password, user.PasswordHash) {
		pkg.WriteJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := handler.sessions.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login, create session for user %d: %s", user.ID, err)
		pkg.WriteJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, LoginResponse{
		Message: "Login successful",
		User:    user,
		Token:   token,
	}, http.StatusOK)
}

func (handler *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.validate")
	defer span.End()

	var req struct {
		UserID json.Number `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		pkg.WriteJSONError(w, "User ID is required", http.StatusBadRequest)
		return
	}
	userID, err := strconv.Atoi(req.UserID.String())
	if err != nil || userID == 0 {
		pkg.WriteJSONError(w, "User ID is required", http.StatusBadRequest)
		return
	}

	user, ok := handler.getUser(ctx, w, userID)
	if !ok {
		return
	}

	pkg.WriteJSON(w, ValidateResponse{
		Valid: true,
		User:  user,
	}, http.StatusOK)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logout")
	defer span.End()

	if token := r.Header.Get(SessionTokenHeader); token != "" {
		if _, err := handler.sessions.Logout(ctx, token); err != nil {
			log.Errorf("logout: %s", err)
			pkg.WriteJSONError(w, "logout failed", http.StatusInternalServerError)
			return
		}
	}

	pkg.WriteJSON(w, MessageResponse{Message: "Logged out successfully"}, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.get")
	defer span.End()

	userID, err := strconv.Atoi(mux.Vars(r)["user_id"])
	if err != nil {
		pkg.WriteJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if !auth.CanAccessUser(ctx, userID) {
		pkg.WriteJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	user, ok := handler.getUser(ctx, w, userID)
	if !ok {
		return
	}

	pkg.WriteJSON(w, UserResponse{User: user}, http.StatusOK)
}

func (handler *Handler) getUser(ctx context.Context, w http.ResponseWriter, userID int) (*User, bool) {
	user, err := handler.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			pkg.WriteJSONError(w, "User not found", http.StatusNotFound)
			return nil, false
		}
		log.Errorf("get user %d: %s", userID, err)
		pkg.WriteJSONError(w, "failed to get user", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}
