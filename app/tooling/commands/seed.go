package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo/stores/taskpgxstore"
	"github.com/jrazmi/lexprep/core/routine"
	"github.com/jrazmi/lexprep/sdk/logger"
	"github.com/jrazmi/lexprep/sdk/validation"
)

// sampleRoutine is a typical exam-prep day, parsed through the same
// routine parser the app uses.
const sampleRoutine = `8:00 AM - 2:00 PM → School time
2:30 PM - 3:30 PM → Lunch break
4:00 PM - 6:00 PM → Study session
6:00 PM - 6:30 PM → Chat with friends
7:00 PM - 9:00 PM → Coaching class`

// Seed inserts a sample daily routine for the given user id.
func Seed(pool *pgxpool.Pool, log *slog.Logger, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: seed <uid>")
	}
	uid := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now()
	inputs := routine.Parse(sampleRoutine, now)
	for i := range inputs {
		inputs[i].UserID = validation.StringPtr(uid)
	}

	lg := logger.NewDefault()
	repo := taskrepo.NewRepository(lg, taskpgxstore.NewStore(lg, pool))
	if err := repo.CreateBatch(ctx, inputs); err != nil {
		return fmt.Errorf("seed tasks: %w", err)
	}

	log.InfoContext(ctx, "seeding completed", "uid", uid, "date", validation.DateOf(now), "count", len(inputs))
	return nil
}
