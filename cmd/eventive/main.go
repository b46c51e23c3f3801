package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/eventive/eventive"
	"github.com/eventive/eventive/api"
	"github.com/eventive/eventive/auth"
	"github.com/eventive/eventive/cache"
	"github.com/eventive/eventive/persistent"
	"github.com/eventive/eventive/pgdb"
	"github.com/eventive/eventive/profile"
	"github.com/eventive/eventive/rest"
	"github.com/eventive/eventive/supabase"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"
)

const callbackAddr = "127.0.0.1:3999"

type app struct {
	bdb      *buntdb.DB
	identity *supabase.Client
	resolver *profile.Resolver
	manager  *auth.Manager
	backend  *api.Client
}

func setupLogger(verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func requireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		logrus.Fatalln(key + " not set!")
	}
	return value
}

func envOr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newApp(ctx context.Context) (*app, func()) {
	supabaseUrl := requireEnv("SUPABASE_URL")
	supabaseAnonKey := requireEnv("SUPABASE_ANON_KEY")
	pgDsn := requireEnv("POSTGRES_DSN")
	apiUrl := envOr("EVENTIVE_API_URL", "http://localhost:3001")
	cachePath := envOr("EVENTIVE_CACHE", "eventive.db")

	bdb, err := buntdb.Open(cachePath)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open local cache.")
	}

	db := pgdb.Open(ctx, pgDsn)

	identity := supabase.New(supabaseUrl, supabaseAnonKey)
	identity.Persistence = &supabase.BuntSessions{DB: bdb}
	identity.AutoRefresh = true

	store := &persistent.ProfileStore{DB: db}
	resolver := profile.NewResolver(store, cache.NewMemory(), &cache.Bunt{DB: bdb})
	manager := auth.NewManager(identity, resolver)
	backend := &api.Client{BaseUrl: apiUrl, Tokens: identity}

	shutdown := func() {
		manager.Close()
		identity.Close()
		db.Close()
		bdb.Close()
	}
	return &app{
		bdb:      bdb,
		identity: identity,
		resolver: resolver,
		manager:  manager,
		backend:  backend,
	}, shutdown
}

func main() {
	godotenv.Load()
	setupLogger(os.Getenv("DEBUG") == "true")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	a, shutdown := newApp(ctx)
	defer shutdown()

	var err error
	switch os.Args[1] {
	case "login":
		err = a.login(ctx, os.Args[2:])
	case "login-oauth":
		err = a.loginOAuth(ctx, os.Args[2:])
	case "whoami":
		err = a.whoami(ctx)
	case "settings":
		err = a.settings(ctx, os.Args[2:])
	case "avatar":
		err = a.avatar(ctx, os.Args[2:])
	case "logout":
		err = a.logout(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logrus.WithError(err).Fatalln("Command failed.")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: eventive <login|login-oauth|whoami|settings|avatar|logout> [args]")
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: eventive login <email>")
	}
	email := args[0]

	fmt.Fprint(os.Stderr, "password: ")
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := a.identity.SignInWithPassword(ctx, email, strings.TrimSpace(password))
	if err != nil {
		return err
	}
	return a.printProfile(ctx, session.Identity)
}

func (a *app) loginOAuth(ctx context.Context, args []string) error {
	provider := supabase.ProviderGoogle
	if len(args) > 0 {
		provider = supabase.Provider(args[0])
	}
	if !provider.Known() {
		return fmt.Errorf("unknown provider %q", provider)
	}

	verifier, err := supabase.NewPKCEVerifier()
	if err != nil {
		return err
	}

	sessions := make(chan eventive.Session, 1)
	controller := &rest.OAuthCallbackController{
		ExchangeCode: func(code string) (eventive.Session, error) {
			return a.identity.ExchangeCode(ctx, code, verifier)
		},
		OnSession: func(session eventive.Session) {
			sessions <- session
		},
	}

	server := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          rest.ErrorHandler,
	})
	controller.InstallTo(server)
	server.Use(rest.NotFoundHandler)
	go server.Listen(callbackAddr)
	defer server.Shutdown()

	redirectTo := "http://" + callbackAddr + "/auth/callback"
	fmt.Println("Open this url in your browser to sign in:")
	fmt.Println(a.identity.OAuthUrl(provider, redirectTo, verifier))

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	select {
	case session := <-sessions:
		return a.printProfile(ctx, session.Identity)
	case <-interrupted:
		return fmt.Errorf("sign in aborted")
	}
}

func (a *app) whoami(ctx context.Context) error {
	a.manager.Initialize(ctx)

	identity, ok := a.manager.Identity()
	if !ok {
		fmt.Println("signed out")
		return nil
	}
	fmt.Printf("%s <%s>\n", identity.DisplayName(), identity.Email)

	if resolved, ok := a.manager.Profile(); ok {
		printProfileFields(resolved)
	} else {
		fmt.Println("profile: unavailable")
	}
	return nil
}

func (a *app) settings(ctx context.Context, args []string) error {
	a.manager.Initialize(ctx)
	if _, ok := a.manager.Identity(); !ok {
		return eventive.ErrSessionMissing
	}

	if len(args) == 0 || args[0] == "get" {
		settings, err := a.backend.Settings()
		if err != nil {
			return err
		}
		for key, value := range settings {
			fmt.Printf("%s=%v\n", key, value)
		}
		return nil
	}
	if args[0] == "set" && len(args) == 3 {
		settings, err := a.backend.Settings()
		if err != nil {
			return err
		}
		if settings == nil {
			settings = eventive.Settings{}
		}
		settings[args[1]] = args[2]
		if _, err := a.backend.UpdateSettings(settings); err != nil {
			return err
		}
		a.manager.RefreshProfile(ctx)
		return nil
	}
	return fmt.Errorf("usage: eventive settings [get | set <key> <value>]")
}

func (a *app) avatar(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: eventive avatar <file>")
	}
	a.manager.Initialize(ctx)
	if _, ok := a.manager.Identity(); !ok {
		return eventive.ErrSessionMissing
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read avatar file: %w", err)
	}
	contentType := http.DetectContentType(data)
	if validation := eventive.ValidateAvatar(contentType, int64(len(data))); !validation.Valid {
		return fmt.Errorf("avatar rejected: %s", validation.Reason)
	}

	// upload under a random name; the local path stays private
	filename := uuid.NewString() + strings.ToLower(filepath.Ext(args[0]))
	url, err := a.backend.UploadAvatar(filename, contentType, data)
	if err != nil {
		return err
	}
	fmt.Println(url)
	a.manager.RefreshProfile(ctx)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	a.manager.Initialize(ctx)
	if _, ok := a.manager.Identity(); !ok {
		fmt.Println("already signed out")
		return nil
	}
	return a.manager.SignOut(ctx)
}

func (a *app) printProfile(ctx context.Context, identity eventive.Identity) error {
	if resolved, ok := a.resolver.Resolve(ctx, identity, false); ok {
		printProfileFields(resolved)
	}
	return nil
}

func printProfileFields(p eventive.Profile) {
	fmt.Printf("id:           %s\n", p.Id)
	if p.Username != "" {
		fmt.Printf("username:     %s\n", p.Username)
	}
	fmt.Printf("display name: %s\n", p.DisplayName)
	if p.Bio != "" {
		fmt.Printf("bio:          %s\n", p.Bio)
	}
	if p.AvatarUrl != "" {
		fmt.Printf("avatar:       %s\n", p.AvatarUrl)
	}
	fmt.Printf("role:         %s\n", p.Role)
}
