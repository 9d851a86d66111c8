package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feelkraft/comic-api/internal/adapter/repo"
)

func main() {
	var (
		idFlag   string
		planFlag string
	)
	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&planFlag, "plan", "pro", "plan to assign (free or pro)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}
	plan := strings.TrimSpace(strings.ToLower(planFlag))
	switch plan {
	case "free", "pro":
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", planFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	users := repo.NewUserRepository(pool)

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := users.SetPro(execCtx, userID, plan == "pro"); err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	user, err := users.GetByID(execCtx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load updated user: %w", err))
	}

	fmt.Printf("User %s (%s) updated to plan %s\n", user.ID, user.Email, plan)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
