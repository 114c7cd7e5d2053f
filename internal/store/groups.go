package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aurabattle/internal/middleware"
	"aurabattle/internal/models"
	"aurabattle/internal/observability"
	"aurabattle/internal/storage"
	"aurabattle/internal/validation"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	// codeAttempts bounds collision retries when allocating a join code.
	// 36^6 codes make exhaustion unreachable in practice.
	codeAttempts = 10
)

// GroupStore owns groups, membership, and the append-only aura event log.
// It depends on the UserStore to resolve users and to keep recipient
// totals consistent with the event history. Safe for concurrent use.
type GroupStore struct {
	storage storage.Store
	users   *UserStore
	logger  *slog.Logger

	// now is stubbed in tests to control event timestamps.
	now func() int64

	mu     sync.Mutex
	groups []models.Group
	events []models.AuraEvent
	loaded bool
}

// NewGroupStore creates a GroupStore backed by the given blob store and
// user store.
func NewGroupStore(st storage.Store, users *UserStore) *GroupStore {
	return &GroupStore{
		storage: st,
		users:   users,
		logger:  middleware.Logger,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// ensureLoaded populates the cache from durable storage on first use.
// Callers must hold the lock.
func (s *GroupStore) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	rawGroups, ok, err := s.storage.Get(ctx, storage.KeyGroups)
	if err != nil {
		return models.NewInternalError(err)
	}
	groups := []models.Group{}
	if ok {
		if err := json.Unmarshal([]byte(rawGroups), &groups); err != nil {
			return models.NewInternalError(fmt.Errorf("corrupt groups entry: %w", err))
		}
	}

	rawEvents, ok, err := s.storage.Get(ctx, storage.KeyEvents)
	if err != nil {
		return models.NewInternalError(err)
	}
	events := []models.AuraEvent{}
	if ok {
		if err := json.Unmarshal([]byte(rawEvents), &events); err != nil {
			return models.NewInternalError(fmt.Errorf("corrupt events entry: %w", err))
		}
	}

	s.groups = groups
	s.events = events
	s.loaded = true
	return nil
}

// resolveActor verifies the acting user. Session identity is threaded
// explicitly by the caller rather than read from ambient state.
func (s *GroupStore) resolveActor(ctx context.Context, actorID string) (*models.User, error) {
	if actorID == "" {
		return nil, models.NewNotAuthenticatedError()
	}
	actor, err := s.users.UserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, models.NewNotAuthenticatedError()
	}
	return actor, nil
}

func encodeGroups(groups []models.Group) (string, error) {
	raw, err := json.Marshal(groups)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(raw), nil
}

func encodeEvents(events []models.AuraEvent) (string, error) {
	raw, err := json.Marshal(events)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(raw), nil
}

// generateCode allocates a random join code, retrying against codes
// already in use. Callers must hold the lock.
func (s *GroupStore) generateCode() (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
		}
		code := string(buf)

		taken := false
		for i := range s.groups {
			if s.groups[i].Code == code {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
	return "", models.NewInternalError(fmt.Errorf("could not allocate a unique join code after %d attempts", codeAttempts))
}

// CreateGroup creates a group owned by the acting user, with a fresh join
// code and the actor as sole member.
func (s *GroupStore) CreateGroup(ctx context.Context, actorID, name string) (group *models.Group, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "groups", "create")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.ValidateGroupName(name); err != nil {
		observability.ObserveStoreOp("groups", "create", models.CodeValidation)
		return nil, models.NewValidationError(err.Error())
	}

	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		observability.ObserveStoreOp("groups", "create", errCode(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		observability.ObserveStoreOp("groups", "create", models.CodeInternal)
		return nil, err
	}

	code, err := s.generateCode()
	if err != nil {
		observability.ObserveStoreOp("groups", "create", models.CodeInternal)
		return nil, err
	}

	created := models.Group{
		ID:      uuid.New().String(),
		Name:    name,
		Code:    code,
		Members: []string{actor.ID},
		Events:  []string{},
	}

	updated := append(append([]models.Group{}, s.groups...), created)
	payload, err := encodeGroups(updated)
	if err != nil {
		observability.ObserveStoreOp("groups", "create", models.CodeInternal)
		return nil, err
	}
	if err := s.storage.Set(ctx, storage.KeyGroups, payload); err != nil {
		observability.ObserveStoreOp("groups", "create", models.CodeInternal)
		return nil, models.NewInternalError(err)
	}

	s.groups = updated
	s.logger.InfoContext(ctx, "group created",
		slog.String("group_id", created.ID),
		slog.String("name", created.Name),
		slog.String("created_by", actor.ID),
	)
	observability.ObserveStoreOp("groups", "create", "ok")
	return copyGroup(&created), nil
}

// JoinGroup adds the acting user to the group whose code matches
// case-insensitively.
func (s *GroupStore) JoinGroup(ctx context.Context, actorID, code string) (group *models.Group, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "groups", "join")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.ValidateJoinCode(code); err != nil {
		observability.ObserveStoreOp("groups", "join", models.CodeValidation)
		return nil, models.NewValidationError(err.Error())
	}

	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		observability.ObserveStoreOp("groups", "join", errCode(err))
		return nil, err
	}

	normalized := validation.NormalizeJoinCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		observability.ObserveStoreOp("groups", "join", models.CodeInternal)
		return nil, err
	}

	idx := -1
	for i := range s.groups {
		if validation.NormalizeJoinCode(s.groups[i].Code) == normalized {
			idx = i
			break
		}
	}
	if idx < 0 {
		observability.ObserveStoreOp("groups", "join", models.CodeGroupNotFound)
		return nil, models.NewGroupNotFoundError(code)
	}
	if s.groups[idx].HasMember(actor.ID) {
		observability.ObserveStoreOp("groups", "join", models.CodeAlreadyMember)
		return nil, models.NewAlreadyMemberError()
	}

	updated := make([]models.Group, len(s.groups))
	copy(updated, s.groups)
	joined := *copyGroup(&updated[idx])
	joined.Members = append(joined.Members, actor.ID)
	updated[idx] = joined

	payload, err := encodeGroups(updated)
	if err != nil {
		observability.ObserveStoreOp("groups", "join", models.CodeInternal)
		return nil, err
	}
	if err := s.storage.Set(ctx, storage.KeyGroups, payload); err != nil {
		observability.ObserveStoreOp("groups", "join", models.CodeInternal)
		return nil, models.NewInternalError(err)
	}

	s.groups = updated
	s.logger.InfoContext(ctx, "user joined group",
		slog.String("group_id", joined.ID),
		slog.String("user_id", actor.ID),
	)
	observability.ObserveStoreOp("groups", "join", "ok")
	return copyGroup(&joined), nil
}

// AddAuraPoints records an award event from the acting user to toUserID
// inside the group, appends the event to the group's index, and adjusts
// the recipient's total. The three updated collections are committed in a
// single atomic write, so an interrupted process cannot strand an event
// without its group index or recipient total.
func (s *GroupStore) AddAuraPoints(ctx context.Context, actorID, groupID, toUserID string, points int, description string) (event *models.AuraEvent, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "groups", "award")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.ValidateDescription(description); err != nil {
		observability.ObserveStoreOp("groups", "award", models.CodeValidation)
		return nil, models.NewValidationError(err.Error())
	}

	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		observability.ObserveStoreOp("groups", "award", errCode(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		observability.ObserveStoreOp("groups", "award", models.CodeInternal)
		return nil, err
	}

	idx := -1
	for i := range s.groups {
		if s.groups[i].ID == groupID {
			idx = i
			break
		}
	}
	if idx < 0 {
		observability.ObserveStoreOp("groups", "award", models.CodeGroupNotFound)
		return nil, models.NewGroupNotFoundError(groupID)
	}
	if !s.groups[idx].HasMember(actor.ID) {
		observability.ObserveStoreOp("groups", "award", models.CodeNotAMember)
		return nil, models.NewNotAMemberError()
	}
	if !s.groups[idx].HasMember(toUserID) {
		observability.ObserveStoreOp("groups", "award", models.CodeRecipientNotMember)
		return nil, models.NewRecipientNotMemberError()
	}

	awarded := models.AuraEvent{
		ID:          uuid.New().String(),
		GroupID:     groupID,
		FromUserID:  actor.ID,
		ToUserID:    toUserID,
		Points:      points,
		Description: description,
		Timestamp:   s.now(),
	}

	updatedEvents := append(append([]models.AuraEvent{}, s.events...), awarded)
	eventsPayload, err := encodeEvents(updatedEvents)
	if err != nil {
		observability.ObserveStoreOp("groups", "award", models.CodeInternal)
		return nil, err
	}

	updatedGroups := make([]models.Group, len(s.groups))
	copy(updatedGroups, s.groups)
	changed := *copyGroup(&updatedGroups[idx])
	changed.Events = append(changed.Events, awarded.ID)
	updatedGroups[idx] = changed

	groupsPayload, err := encodeGroups(updatedGroups)
	if err != nil {
		observability.ObserveStoreOp("groups", "award", models.CodeInternal)
		return nil, err
	}

	// The user store snapshots, commits, and applies under its own lock,
	// so a concurrent user mutation cannot be overwritten by a stale
	// collection. Lock order is always groups then users.
	err = s.users.commitUsersWithDelta(ctx, toUserID, points, func(usersPayload string) error {
		return s.storage.SetAll(ctx, map[string]string{
			storage.KeyEvents: eventsPayload,
			storage.KeyGroups: groupsPayload,
			storage.KeyUsers:  usersPayload,
		})
	})
	if err != nil {
		observability.ObserveStoreOp("groups", "award", models.CodeInternal)
		if models.IsCode(err, models.CodeInternal) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}

	s.events = updatedEvents
	s.groups = updatedGroups

	s.logger.InfoContext(ctx, "aura awarded",
		slog.String("group_id", groupID),
		slog.String("from", actor.ID),
		slog.String("to", toUserID),
		slog.Int("points", points),
	)
	observability.AuraPointsAwarded.Observe(float64(points))
	observability.ObserveStoreOp("groups", "award", "ok")
	return &awarded, nil
}

// UserGroups returns all groups the acting user belongs to. An unknown or
// empty actor yields an empty list, not an error.
func (s *GroupStore) UserGroups(ctx context.Context, actorID string) ([]models.Group, error) {
	if actorID == "" {
		return []models.Group{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	result := []models.Group{}
	for i := range s.groups {
		if s.groups[i].HasMember(actorID) {
			result = append(result, *copyGroup(&s.groups[i]))
		}
	}
	return result, nil
}

// GroupByID returns the group with the given ID.
func (s *GroupStore) GroupByID(ctx context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	for i := range s.groups {
		if s.groups[i].ID == id {
			return copyGroup(&s.groups[i]), nil
		}
	}
	return nil, models.NewGroupNotFoundError(id)
}

// GroupMembers returns the group's members in leaderboard order: total
// aura descending, ties broken by user ID ascending for determinism.
func (s *GroupStore) GroupMembers(ctx context.Context, id string) ([]models.User, error) {
	group, err := s.GroupByID(ctx, id)
	if err != nil {
		return nil, err
	}

	users, err := s.users.Users(ctx)
	if err != nil {
		return nil, err
	}

	members := []models.User{}
	for i := range users {
		if group.HasMember(users[i].ID) {
			members = append(members, users[i])
		}
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].TotalAura != members[j].TotalAura {
			return members[i].TotalAura > members[j].TotalAura
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

// GroupEvents returns the group's events newest first. Unknown groups
// yield an empty log.
func (s *GroupStore) GroupEvents(ctx context.Context, groupID string) ([]models.AuraEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	result := []models.AuraEvent{}
	for i := range s.events {
		if s.events[i].GroupID == groupID {
			result = append(result, s.events[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})
	return result, nil
}

func copyGroup(g *models.Group) *models.Group {
	dup := *g
	dup.Members = append([]string{}, g.Members...)
	dup.Events = append([]string{}, g.Events...)
	return &dup
}

// errCode extracts the AppError code for metrics labels.
func errCode(err error) string {
	if appErr, ok := err.(*models.AppError); ok {
		return appErr.Code
	}
	return models.CodeInternal
}
