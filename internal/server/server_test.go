package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"aurabattle/internal/config"
	"aurabattle/internal/models"
	"aurabattle/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      "test-secret-key",
		Port:           "0",
		StorageBackend: config.BackendSQLite,
		Env:            "test",
	}
}

// newTestApp builds a full application over in-memory SQLite storage.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	st, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := NewServerWithDeps(testConfig(), st)
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func doJSONList(t *testing.T, app *fiber.App, path, token string) (int, []map[string]any) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded []map[string]any
	if resp.StatusCode == fiber.StatusOK {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

// register creates a user over the API and returns its token and ID.
func register(t *testing.T, app *fiber.App, username string) (token, id string) {
	t.Helper()

	status, body := doJSON(t, app, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
	})
	require.Equal(t, fiber.StatusCreated, status)

	token, _ = body["token"].(string)
	require.NotEmpty(t, token)

	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	id, _ = user["id"].(string)
	require.NotEmpty(t, id)
	return token, id
}

func TestAuthEndpoints(t *testing.T) {
	t.Run("register login me", func(t *testing.T) {
		app := newTestApp(t)

		token, id := register(t, app, "alice")

		status, body := doJSON(t, app, "GET", "/api/auth/me", token, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, id, body["id"])
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, float64(0), body["totalAura"])

		// Login is case-insensitive and returns a fresh token.
		status, body = doJSON(t, app, "POST", "/api/auth/login", "", map[string]string{
			"username": "ALICE",
		})
		require.Equal(t, fiber.StatusOK, status)
		assert.NotEmpty(t, body["token"])
	})

	t.Run("duplicate username", func(t *testing.T) {
		app := newTestApp(t)

		register(t, app, "alice")
		status, body := doJSON(t, app, "POST", "/api/auth/register", "", map[string]string{
			"username": "Alice",
		})
		require.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, models.CodeDuplicateUsername, body["code"])
	})

	t.Run("login unknown user", func(t *testing.T) {
		app := newTestApp(t)

		status, _ := doJSON(t, app, "POST", "/api/auth/login", "", map[string]string{
			"username": "nobody",
		})
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("logout", func(t *testing.T) {
		app := newTestApp(t)
		token, _ := register(t, app, "alice")

		status, _ := doJSON(t, app, "POST", "/api/auth/logout", token, nil)
		assert.Equal(t, fiber.StatusNoContent, status)
	})

	t.Run("protected routes reject anonymous requests", func(t *testing.T) {
		app := newTestApp(t)

		status, _ := doJSON(t, app, "GET", "/api/auth/me", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)

		status, _ = doJSON(t, app, "POST", "/api/groups", "", map[string]string{"name": "Dorm"})
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})
}

func TestUserEndpoints(t *testing.T) {
	t.Run("list users", func(t *testing.T) {
		app := newTestApp(t)
		token, _ := register(t, app, "alice")
		register(t, app, "bob")

		status, users := doJSONList(t, app, "/api/users", token)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, users, 2)
	})

	t.Run("update profile", func(t *testing.T) {
		app := newTestApp(t)
		token, id := register(t, app, "alice")

		status, body := doJSON(t, app, "PUT", "/api/users/me", token, map[string]string{
			"profilePicture": "https://example.com/new.png",
		})
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, id, body["id"])
		assert.Equal(t, "alice", body["username"], "unset fields stay unchanged")
		assert.Equal(t, "https://example.com/new.png", body["profilePicture"])
	})
}

func TestGroupEndpoints(t *testing.T) {
	t.Run("create join and inspect", func(t *testing.T) {
		app := newTestApp(t)
		aliceToken, aliceID := register(t, app, "alice")
		bobToken, bobID := register(t, app, "bob")

		status, group := doJSON(t, app, "POST", "/api/groups", aliceToken, map[string]string{
			"name": "Dorm Floor 3",
		})
		require.Equal(t, fiber.StatusCreated, status)
		groupID, _ := group["id"].(string)
		code, _ := group["code"].(string)
		require.NotEmpty(t, groupID)
		require.Len(t, code, 6)

		// Bob joins with the lowercased code.
		status, joined := doJSON(t, app, "POST", "/api/groups/join", bobToken, map[string]string{
			"code": code,
		})
		require.Equal(t, fiber.StatusOK, status)
		members, _ := joined["members"].([]any)
		assert.ElementsMatch(t, []any{aliceID, bobID}, members)

		// Both see the group in their listings.
		status, mine := doJSONList(t, app, "/api/groups", bobToken)
		require.Equal(t, fiber.StatusOK, status)
		require.Len(t, mine, 1)
		assert.Equal(t, groupID, mine[0]["id"])

		// Group detail for a member.
		status, detail := doJSON(t, app, "GET", "/api/groups/"+groupID, aliceToken, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Dorm Floor 3", detail["name"])
	})

	t.Run("join errors", func(t *testing.T) {
		app := newTestApp(t)
		aliceToken, _ := register(t, app, "alice")

		status, _ := doJSON(t, app, "POST", "/api/groups/join", aliceToken, map[string]string{
			"code": "ZZZZZZ",
		})
		assert.Equal(t, fiber.StatusNotFound, status)

		status, _ = doJSON(t, app, "POST", "/api/groups/join", aliceToken, map[string]string{
			"code": "ZZ",
		})
		assert.Equal(t, fiber.StatusBadRequest, status)

		_, group := doJSON(t, app, "POST", "/api/groups", aliceToken, map[string]string{"name": "Dorm"})
		code, _ := group["code"].(string)

		status, _ = doJSON(t, app, "POST", "/api/groups/join", aliceToken, map[string]string{
			"code": code,
		})
		assert.Equal(t, fiber.StatusConflict, status)
	})

	t.Run("non-members cannot view a group", func(t *testing.T) {
		app := newTestApp(t)
		aliceToken, _ := register(t, app, "alice")
		carolToken, _ := register(t, app, "carol")

		_, group := doJSON(t, app, "POST", "/api/groups", aliceToken, map[string]string{"name": "Dorm"})
		groupID, _ := group["id"].(string)

		status, _ := doJSON(t, app, "GET", "/api/groups/"+groupID, carolToken, nil)
		assert.Equal(t, fiber.StatusForbidden, status)

		status, _ = doJSON(t, app, "GET", "/api/groups/"+groupID+"/members", carolToken, nil)
		assert.Equal(t, fiber.StatusForbidden, status)

		status, _ = doJSON(t, app, "GET", "/api/groups/"+groupID+"/events", carolToken, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
	})
}

func TestAuraEndpoints(t *testing.T) {
	setup := func(t *testing.T) (*fiber.App, string, string, string, string, string) {
		app := newTestApp(t)
		aliceToken, aliceID := register(t, app, "alice")
		bobToken, bobID := register(t, app, "bob")

		_, group := doJSON(t, app, "POST", "/api/groups", aliceToken, map[string]string{"name": "Dorm"})
		groupID, _ := group["id"].(string)
		code, _ := group["code"].(string)
		_, _ = doJSON(t, app, "POST", "/api/groups/join", bobToken, map[string]string{"code": code})

		return app, aliceToken, bobToken, groupID, aliceID, bobID
	}

	t.Run("award flows into feed leaderboard and totals", func(t *testing.T) {
		app, aliceToken, bobToken, groupID, aliceID, bobID := setup(t)

		status, event := doJSON(t, app, "POST", "/api/groups/"+groupID+"/aura", aliceToken, map[string]any{
			"toUserId":    bobID,
			"points":      10,
			"description": "Did the dishes",
		})
		require.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, float64(10), event["points"])
		assert.Equal(t, bobID, event["toUserId"])

		status, _ = doJSON(t, app, "POST", "/api/groups/"+groupID+"/aura", bobToken, map[string]any{
			"toUserId":    aliceID,
			"points":      -5,
			"description": "Ate my leftovers",
		})
		require.Equal(t, fiber.StatusCreated, status)

		status, events := doJSONList(t, app, "/api/groups/"+groupID+"/events", aliceToken)
		require.Equal(t, fiber.StatusOK, status)
		require.Len(t, events, 2)
		assert.Equal(t, "Ate my leftovers", events[0]["description"])

		status, members := doJSONList(t, app, "/api/groups/"+groupID+"/members", aliceToken)
		require.Equal(t, fiber.StatusOK, status)
		require.Len(t, members, 2)
		assert.Equal(t, bobID, members[0]["id"])
		assert.Equal(t, float64(10), members[0]["totalAura"])
		assert.Equal(t, float64(-5), members[1]["totalAura"])
	})

	t.Run("award to a non-member", func(t *testing.T) {
		app, aliceToken, _, groupID, _, _ := setup(t)
		_, carolID := register(t, app, "carol")

		status, body := doJSON(t, app, "POST", "/api/groups/"+groupID+"/aura", aliceToken, map[string]any{
			"toUserId":    carolID,
			"points":      5,
			"description": "hi",
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, models.CodeRecipientNotMember, body["code"])
	})

	t.Run("award without description", func(t *testing.T) {
		app, aliceToken, _, groupID, _, bobID := setup(t)

		status, _ := doJSON(t, app, "POST", "/api/groups/"+groupID+"/aura", aliceToken, map[string]any{
			"toUserId": bobID,
			"points":   5,
		})
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("award in an unknown group", func(t *testing.T) {
		app, aliceToken, _, _, _, bobID := setup(t)

		status, _ := doJSON(t, app, "POST", "/api/groups/missing/aura", aliceToken, map[string]any{
			"toUserId":    bobID,
			"points":      5,
			"description": "hi",
		})
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doJSON(t, app, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}
