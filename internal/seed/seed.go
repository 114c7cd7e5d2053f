// Package seed provides helpers to create demo data for development
// environments. It drives the public store APIs rather than writing to
// storage directly so seeded data goes through the same validation as
// real traffic.
package seed

import (
	"context"
	"fmt"
	"strings"

	"aurabattle/internal/middleware"
	"aurabattle/internal/models"
	"aurabattle/internal/store"

	"github.com/brianvoe/gofakeit/v6"
)

const (
	demoUsers           = 8
	demoAwardsPerMember = 3
)

var groupNames = []string{
	"Dorm Floor 3", "The Lunch Table", "Gym Rats", "Study Squad",
	"Roommates", "Intramural Legends",
}

var awardReasons = []string{
	"Did the dishes without being asked",
	"Carried the group project",
	"Showed up on time for once",
	"Left the thermostat alone",
	"Covered my shift",
	"Brought snacks to the study session",
	"Ate the last slice of pizza",
	"Forgot to lock the door again",
	"Blasted music at 2am",
}

var awardPoints = []int{-10, -5, -3, 3, 5, 5, 10, 10, 15}

// Demo populates the stores with a handful of users, a couple of
// groups, and a short award history. Intended for local development
// only; the server refuses to run it in production.
func Demo(ctx context.Context, users *store.UserStore, groups *store.GroupStore) error {
	gofakeit.Seed(0)

	existing, err := users.Users(ctx)
	if err != nil {
		return fmt.Errorf("seed: list users: %w", err)
	}
	if len(existing) > 0 {
		middleware.Logger.InfoContext(ctx, "seed: data already present, skipping")
		return nil
	}

	created, err := createUsers(ctx, users)
	if err != nil {
		return err
	}

	if err := createGroups(ctx, groups, created); err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "seed: demo data created",
		"users", len(created))
	return nil
}

func createUsers(ctx context.Context, users *store.UserStore) ([]models.User, error) {
	created := make([]models.User, 0, demoUsers)
	for i := 0; i < demoUsers; i++ {
		username := demoUsername(i)
		user, err := users.Create(ctx, username,
			fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username))
		if err != nil {
			return nil, fmt.Errorf("seed: create user %s: %w", username, err)
		}
		created = append(created, *user)
	}
	return created, nil
}

func createGroups(ctx context.Context, groups *store.GroupStore, users []models.User) error {
	for gi, name := range groupNames[:3] {
		// Rotate the creator so no single user owns everything.
		creator := users[gi%len(users)]
		group, err := groups.CreateGroup(ctx, creator.ID, name)
		if err != nil {
			return fmt.Errorf("seed: create group %s: %w", name, err)
		}

		// A slice of the remaining users joins each group.
		members := []models.User{creator}
		for mi := gi + 1; mi < len(users); mi += 2 {
			if _, err := groups.JoinGroup(ctx, users[mi].ID, group.Code); err != nil {
				return fmt.Errorf("seed: join group %s: %w", name, err)
			}
			members = append(members, users[mi])
		}

		if err := awardHistory(ctx, groups, group.ID, members); err != nil {
			return err
		}
	}
	return nil
}

func awardHistory(ctx context.Context, groups *store.GroupStore, groupID string, members []models.User) error {
	if len(members) < 2 {
		return nil
	}
	for i := 0; i < len(members)*demoAwardsPerMember; i++ {
		from := members[gofakeit.Number(0, len(members)-1)]
		to := members[gofakeit.Number(0, len(members)-1)]
		if from.ID == to.ID {
			continue
		}
		points := awardPoints[gofakeit.Number(0, len(awardPoints)-1)]
		reason := awardReasons[gofakeit.Number(0, len(awardReasons)-1)]
		if _, err := groups.AddAuraPoints(ctx, from.ID, groupID, to.ID, points, reason); err != nil {
			return fmt.Errorf("seed: award points in %s: %w", groupID, err)
		}
	}
	return nil
}

func demoUsername(i int) string {
	base := strings.ToLower(gofakeit.FirstName())
	return fmt.Sprintf("%s%d", base, i)
}
