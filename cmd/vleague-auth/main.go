package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/backend"
	"github.com/vbongda/vleague-auth/internal/config"
	"github.com/vbongda/vleague-auth/internal/devserver"
	"github.com/vbongda/vleague-auth/popup"
	"github.com/vbongda/vleague-auth/popup/loopback"
	"github.com/vbongda/vleague-auth/session"
	"github.com/vbongda/vleague-auth/tokenstore"
)

const usage = `usage: vleague-auth <command> [flags]

commands:
  login     -email <email> -password <password>
  register  -username <name> -email <email> -password <password> [-name <full name>]
  google    sign in with Google via the system browser
  whoami    validate the stored session and print the profile
  logout    clear the stored session
  dev       run the in-process dev backend
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	c := config.New()
	log := newLogger(c.GetEnv())
	if err := run(log, c, os.Args[1], os.Args[2:]); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func newLogger(env string) zerolog.Logger {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if env == "DEV" {
		return log.Level(zerolog.DebugLevel)
	}
	return log.Level(zerolog.InfoLevel)
}

func run(log zerolog.Logger, c config.Config, command string, args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if command == "dev" {
		displayAppname(c.GetAppName())
		return runDevServer(log, c)
	}

	controller, cleanup, err := buildController(log, c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	controller.Start(ctx)

	switch command {
	case "login":
		return runLogin(ctx, controller, args)
	case "register":
		return runRegister(ctx, controller, args)
	case "google":
		return runGoogle(ctx, controller)
	case "whoami":
		return runWhoami(controller)
	case "logout":
		controller.Logout()
		fmt.Println("logged out")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Errorf("unknown command %q", command)
	}
}

func buildController(log zerolog.Logger, c config.Config) (*session.Controller, func(), error) {
	store, err := tokenstore.NewFileStore(c.GetStoreDir())
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating token store")
	}

	api, err := backend.New(c.GetAPIBaseURL(),
		backend.WithLogger(log),
		backend.WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating backend client")
	}

	host, err := loopback.NewHost(api,
		loopback.WithLogger(log),
		loopback.WithCloseDelays(c.GetSuccessCloseDelay(), c.GetErrorCloseDelay()))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating loopback host")
	}

	coordinator, err := popup.NewCoordinator(api, host,
		popup.WithLogger(log),
		popup.WithTimeout(c.GetHandshakeTimeout()),
		popup.WithPollInterval(c.GetClosePollInterval()),
		popup.WithWindowSize(c.GetPopupWidth(), c.GetPopupHeight()))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating popup coordinator")
	}

	controller, err := session.NewController(store, api,
		session.WithLogger(log),
		session.WithGoogleAuthenticator(coordinator))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating session controller")
	}

	cleanup := func() { _ = host.Close() }
	return controller, cleanup, nil
}

func runLogin(ctx context.Context, controller *session.Controller, args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	_ = flags.Parse(args)

	return report(controller.Login(ctx, *email, *password), controller)
}

func runRegister(ctx context.Context, controller *session.Controller, args []string) error {
	flags := flag.NewFlagSet("register", flag.ExitOnError)
	username := flags.String("username", "", "display name")
	fullName := flags.String("name", "", "full name")
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	_ = flags.Parse(args)

	registration := backend.Registration{
		Username: *username,
		FullName: *fullName,
		Email:    *email,
		Password: *password,
	}
	return report(controller.Register(ctx, registration), controller)
}

func runGoogle(ctx context.Context, controller *session.Controller) error {
	fmt.Println("Opening the browser for Google sign-in...")
	return report(controller.GoogleLogin(ctx), controller)
}

func runWhoami(controller *session.Controller) error {
	user, ok := controller.CurrentUser()
	if !ok {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("%s <%s> (id %s)\n", user.Username, user.Email, user.ID)
	return nil
}

func report(result session.Result, controller *session.Controller) error {
	if !result.Success {
		return errors.New(result.Message)
	}
	if user, ok := controller.CurrentUser(); ok {
		fmt.Printf("signed in as %s <%s>\n", user.Username, user.Email)
	}
	return nil
}

func runDevServer(log zerolog.Logger, c config.Config) error {
	srv := devserver.New(
		devserver.WithLogger(log),
		devserver.WithAllowedOrigin(c.GetAppOrigin()),
		devserver.WithGoogleClient(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET")))
	if err := srv.Seed("demo", "demo@vleague.local", "demo12345"); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", srv.Handler()))
	// The dev authorize page is linked without the API prefix.
	mux.Handle("/auth/google/authorize", srv.Handler())

	server := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("dev backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dev backend stopped")
		}
	}()

	waitForStopSignal()
	return shutdown(server)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
