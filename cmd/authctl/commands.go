package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/resources"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Session and API client for the learning platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newMeCmd(a),
		newRefreshCmd(a),
		newHealthCmd(a),
		newListCmd(a),
		newWatchCmd(a),
	)

	return root
}

func newLoginCmd(a *app) *cobra.Command {
	var email, phone, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email or phone number and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := auth.LoginRequest{Password: password}
			if email != "" {
				req.Email = utils.Ptr(email)
			}
			if phone != "" {
				req.PhoneNumber = utils.Ptr(phone)
			}

			user, err := a.session.Login(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (%s)\n", user.FullName, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&phone, "phone", "", "account phone number")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Logout(cmd.Context())
			fmt.Println("Logged out")
			return nil
		},
	}
}

func newMeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Initialize(cmd.Context())
			snapshot := a.session.Snapshot()
			if !snapshot.Authenticated {
				return fmt.Errorf("not logged in")
			}
			return printJSON(snapshot.User)
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.RefreshSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Session refreshed")
			return nil
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.authAPI.Health(cmd.Context()) {
				return fmt.Errorf("backend is not reachable")
			}
			fmt.Println("Backend is healthy")
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <resource>",
		Short: "List records of a resource (courses, enrollments, projects, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := resources.List[map[string]any](cmd.Context(), a.client, args[0])
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive with periodic token renewal",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(a.cfg.GetAppName())

			a.session.Initialize(cmd.Context())
			if a.session.State() != session.StateAuthenticated {
				return fmt.Errorf("not logged in")
			}

			stop := a.session.StartAutoRefresh(cmd.Context())
			defer stop()

			a.log.Info().Msg("session watcher running, press Ctrl+C to stop")
			waitForStopSignal()
			return nil
		},
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
