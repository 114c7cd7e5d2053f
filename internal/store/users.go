// Package store implements the user and group/event stores, the data
// layer between the HTTP handlers and durable blob storage.
//
// Each store caches its collections in memory and writes through to the
// blob store on every mutation; the blob store is the source of truth and
// caches are refreshed only on successful writes. The stores own disjoint
// key sets (users + session marker vs groups + events); the single
// exception is the award commit, which spans both so the event, the group
// index, and the recipient total become durable together.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"aurabattle/internal/middleware"
	"aurabattle/internal/models"
	"aurabattle/internal/observability"
	"aurabattle/internal/storage"
	"aurabattle/internal/validation"
)

// UserStore owns the registered-user collection and the persisted
// device-session marker. Safe for concurrent use.
type UserStore struct {
	storage storage.Store
	logger  *slog.Logger

	mu        sync.RWMutex
	users     []models.User
	sessionID string
	loaded    bool
}

// NewUserStore creates a UserStore backed by the given blob store.
func NewUserStore(st storage.Store) *UserStore {
	return &UserStore{
		storage: st,
		logger:  middleware.Logger,
	}
}

// ensureLoaded populates the cache from durable storage on first use.
// Callers must hold the write lock.
func (s *UserStore) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	raw, ok, err := s.storage.Get(ctx, storage.KeyUsers)
	if err != nil {
		return models.NewInternalError(err)
	}
	users := []models.User{}
	if ok {
		if err := json.Unmarshal([]byte(raw), &users); err != nil {
			return models.NewInternalError(fmt.Errorf("corrupt users entry: %w", err))
		}
	}

	session, _, err := s.storage.Get(ctx, storage.KeySession)
	if err != nil {
		return models.NewInternalError(err)
	}

	s.users = users
	s.sessionID = session
	s.loaded = true
	return nil
}

func encodeUsers(users []models.User) (string, error) {
	raw, err := json.Marshal(users)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(raw), nil
}

// Create registers a new user, persists the collection, and marks the new
// user as the current session identity.
func (s *UserStore) Create(ctx context.Context, username, profilePicture string) (user *models.User, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "users", "create")
	defer func() { observability.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		observability.ObserveStoreOp("users", "create", models.CodeInternal)
		return nil, err
	}

	if err := validation.ValidateUsername(username); err != nil {
		observability.ObserveStoreOp("users", "create", models.CodeValidation)
		return nil, models.NewValidationError(err.Error())
	}

	// Usernames are unique case-insensitively.
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			observability.ObserveStoreOp("users", "create", models.CodeDuplicateUsername)
			return nil, models.NewDuplicateUsernameError(username)
		}
	}

	created := models.User{
		ID:             uuid.New().String(),
		Username:       username,
		ProfilePicture: profilePicture,
		TotalAura:      0,
	}

	updated := append(append([]models.User{}, s.users...), created)
	payload, err := encodeUsers(updated)
	if err != nil {
		observability.ObserveStoreOp("users", "create", models.CodeInternal)
		return nil, err
	}

	// Persist the collection and the session marker in one commit.
	if err := s.storage.SetAll(ctx, map[string]string{
		storage.KeyUsers:   payload,
		storage.KeySession: created.ID,
	}); err != nil {
		observability.ObserveStoreOp("users", "create", models.CodeInternal)
		return nil, models.NewInternalError(err)
	}

	s.users = updated
	s.sessionID = created.ID

	s.logger.InfoContext(ctx, "user created", slog.String("user_id", created.ID), slog.String("username", created.Username))
	observability.ObserveStoreOp("users", "create", "ok")
	return &created, nil
}

// Login matches the username case-insensitively, persists the session
// marker, and returns the matched user.
func (s *UserStore) Login(ctx context.Context, username string) (user *models.User, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "users", "login")
	defer func() { observability.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		observability.ObserveStoreOp("users", "login", models.CodeInternal)
		return nil, err
	}

	for i := range s.users {
		if strings.EqualFold(s.users[i].Username, username) {
			matched := s.users[i]
			if err := s.storage.Set(ctx, storage.KeySession, matched.ID); err != nil {
				observability.ObserveStoreOp("users", "login", models.CodeInternal)
				return nil, models.NewInternalError(err)
			}
			s.sessionID = matched.ID
			s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", matched.ID))
			observability.ObserveStoreOp("users", "login", "ok")
			return &matched, nil
		}
	}

	observability.ObserveStoreOp("users", "login", models.CodeUserNotFound)
	return nil, models.NewUserNotFoundError(username)
}

// Logout clears the session marker. Storage failures are logged and
// swallowed: the caller-visible flow never fails.
func (s *UserStore) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx, storage.KeySession); err != nil {
		s.logger.WarnContext(ctx, "failed to clear session marker", slog.String("error", err.Error()))
	}
	s.sessionID = ""
	observability.ObserveStoreOp("users", "logout", "ok")
}

// Update replaces the stored record matching user.ID with the supplied
// value and persists the full collection. The replacement is taken as-is;
// an unknown ID leaves the collection unchanged.
func (s *UserStore) Update(ctx context.Context, user models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		observability.ObserveStoreOp("users", "update", models.CodeInternal)
		return nil, err
	}

	updated := make([]models.User, len(s.users))
	for i := range s.users {
		if s.users[i].ID == user.ID {
			updated[i] = user
		} else {
			updated[i] = s.users[i]
		}
	}

	payload, err := encodeUsers(updated)
	if err != nil {
		observability.ObserveStoreOp("users", "update", models.CodeInternal)
		return nil, err
	}
	if err := s.storage.Set(ctx, storage.KeyUsers, payload); err != nil {
		observability.ObserveStoreOp("users", "update", models.CodeInternal)
		return nil, models.NewInternalError(err)
	}

	s.users = updated
	observability.ObserveStoreOp("users", "update", "ok")
	return &user, nil
}

// Users returns a copy of the full user collection.
func (s *UserStore) Users(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return append([]models.User{}, s.users...), nil
}

// UserByID returns the user with the given ID, or nil when unknown.
func (s *UserStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	for i := range s.users {
		if s.users[i].ID == id {
			user := s.users[i]
			return &user, nil
		}
	}
	return nil, nil
}

// CurrentUser returns the user named by the persisted session marker, or
// nil when nobody is logged in.
func (s *UserStore) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if s.sessionID == "" {
		return nil, nil
	}
	for i := range s.users {
		if s.users[i].ID == s.sessionID {
			user := s.users[i]
			return &user, nil
		}
	}
	return nil, nil
}

// IsAuthenticated reports whether a session marker naming a known user is set.
func (s *UserStore) IsAuthenticated(ctx context.Context) (bool, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// commitUsersWithDelta renders the user collection with delta added to
// the recipient's total, hands the payload to commit for a durable
// write, and installs the new collection in the cache when commit
// succeeds. The write lock is held for the whole sequence so no
// concurrent Create or Update can land between snapshot and commit and
// be overwritten by the stale collection. A missing recipient record
// yields the unchanged collection, matching the award flow's
// membership-only checks.
func (s *UserStore) commitUsersWithDelta(ctx context.Context, userID string, delta int, commit func(usersPayload string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	updated := make([]models.User, len(s.users))
	copy(updated, s.users)
	for i := range updated {
		if updated[i].ID == userID {
			updated[i].TotalAura += delta
			break
		}
	}

	payload, err := encodeUsers(updated)
	if err != nil {
		return err
	}

	if err := commit(payload); err != nil {
		return err
	}

	s.users = updated
	return nil
}
