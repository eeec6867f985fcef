package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"booking_service/internal/models"
	"booking_service/internal/service"
	"booking_service/internal/storage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the refresh token collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:         a.cfg.Address,
				Handler:      a.handler().InitRoutes(),
				ReadTimeout:  a.cfg.ReadTimeout,
				WriteTimeout: a.cfg.WriteTimeout,
				IdleTimeout:  a.cfg.IdleTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				a.log.Info("started booking service", slog.String("address", srv.Addr), slog.String("env", a.cfg.Env))

				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				return a.service.RunTokenGC(gctx, a.cfg.GC.Interval)
			})

			g.Go(func() error {
				<-gctx.Done()

				a.log.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users and refresh_tokens tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			pg, ok := a.storage.(*storage.PostgresStorage)
			if !ok {
				return errors.New("migrate needs the postgres driver")
			}
			if err := pg.Migrate(cmd.Context()); err != nil {
				return err
			}

			a.log.Info("schema is up to date")

			return nil
		},
	}
}

func purgeTokensCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete refresh tokens that are revoked and expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.service.PurgeExpiredTokens(cmd.Context())
			return err
		},
	}
}

func createUserCmd(configPath *string) *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register a user, typically the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := models.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.service.CreateUser(cmd.Context(), service.NewUser{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     r,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s> as %s\n", user.ID, user.Email, user.Role)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "institutional email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "ADMIN, COORDINATOR or ASSISTANT")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
