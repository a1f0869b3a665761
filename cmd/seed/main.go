// Command seed imports a directory of audio clips as unlabeled samples so
// labelers have something to transcribe. The owning account is created on
// first use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/atinyakov/asrcollect/internal/claims"
	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/config"
	"github.com/atinyakov/asrcollect/internal/db"
	"github.com/atinyakov/asrcollect/internal/models"
	"github.com/atinyakov/asrcollect/internal/repository"
	"github.com/atinyakov/asrcollect/internal/service"
	"github.com/atinyakov/asrcollect/internal/storage"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var username, password, dir string
	options, err := config.Parse("seed", args, func(fs *flag.FlagSet) {
		fs.StringVar(&username, "user", "", "account that owns the imported clips")
		fs.StringVar(&password, "password", "", "password used when the account does not exist yet")
		fs.StringVar(&dir, "dir", "", "directory of audio clips to import")
	})
	if err != nil {
		return err
	}
	if username == "" || dir == "" {
		return errors.New("-user and -dir are required")
	}

	conn, err := db.Init(ctx, options.DatabaseDriver, options.DatabaseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	store, err := storage.FromOptions(ctx, options)
	if err != nil {
		return err
	}

	users := repository.NewSQLUserRepository(conn)
	owner, err := ensureUser(ctx, users, service.NewAuthService(users), username, password)
	if err != nil {
		return err
	}

	samples := service.NewSampleService(
		repository.NewSQLSampleRepository(conn),
		storage.NewIngester(store, options.MaxUploadBytes),
		claims.Noop{},
		zap.NewNop(),
	)

	imported, skipped := 0, 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sample, err := importFile(ctx, samples, owner.ID, path)
		switch {
		case errors.Is(err, common.ErrUnsupportedAudio):
			skipped++
			return nil
		case err != nil:
			return fmt.Errorf("import %s: %w", path, err)
		}
		imported++
		fmt.Fprintf(out, "%s -> %s\n", path, sample.ID)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "imported %d clips for %s, skipped %d\n", imported, owner.Username, skipped)
	return nil
}

func ensureUser(ctx context.Context, users *repository.SQLUserRepository, auth *service.AuthService, username, password string) (*models.User, error) {
	u, err := users.GetByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("user %q does not exist, pass -password to create it", username)
	}
	return auth.Register(ctx, username, password)
}

func importFile(ctx context.Context, samples *service.SampleService, ownerID, path string) (*models.AudioSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return samples.ImportUnlabeled(ctx, ownerID, filepath.Base(path), f)
}
