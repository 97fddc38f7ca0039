package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cinetaste/authkit/internal/capture"
	"github.com/cinetaste/authkit/internal/config"
	"github.com/cinetaste/authkit/internal/gateway"
	"github.com/cinetaste/authkit/internal/session"
	"github.com/cinetaste/authkit/internal/signin"
	"github.com/cinetaste/authkit/internal/store"
)

func main() {
	var (
		mode       = flag.String("mode", "status", "one of status, signin, refresh or signout")
		configPath = flag.String("config", "./config/config.yaml", "path to config file")
		provider   = flag.String("provider", "", "identity provider for signin mode")
	)
	flag.Parse()

	newConfig := func() (*config.Config, error) {
		return config.Load(*configPath)
	}

	app := fx.New(
		fx.Provide(
			zap.NewDevelopment,
			newConfig,
			newStore,
			newLauncher,
			newCapture,
			gateway.New,
			signin.New,
		),
		session.Module,
		fx.Invoke(session.RegisterHooks),
		fx.Invoke(runMode(*mode, *provider)),
	)

	app.Run()
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		return store.NewFile(cfg.Store.Path)
	case "redis":
		return store.NewRedis(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.Prefix)
	default:
		return store.NewSQLite(cfg.Store.Path)
	}
}

func newLauncher(log *zap.Logger) signin.Launcher {
	return signin.NewBrowserLauncher(log)
}

func newCapture(log *zap.Logger) *capture.Capture {
	// No camera on this target; QR capture degrades to text entry.
	return capture.New(os.Stdin, os.Stdout, nil, log)
}

func runMode(mode, provider string) func(fx.Lifecycle, fx.Shutdowner, *session.Manager, *capture.Capture, *zap.Logger) {
	return func(lc fx.Lifecycle, sd fx.Shutdowner, m *session.Manager, c *capture.Capture, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := run(context.Background(), mode, provider, m, c); err != nil {
						log.Error("command failed", zap.Error(err))
					}
					_ = sd.Shutdown()
				}()
				return nil
			},
		})
	}
}

func run(ctx context.Context, mode, provider string, m *session.Manager, c *capture.Capture) error {
	switch mode {
	case "status":
		printStatus(m)
		return nil

	case "signin":
		status, err := m.BeginExternalSignIn(ctx, provider)
		if err != nil {
			return err
		}
		if status == session.SignInNeedsManualEntry {
			token, err := c.Read(ctx)
			if err != nil {
				return err
			}
			if err := m.CompleteManualSignIn(ctx, token); err != nil {
				return err
			}
		}
		printStatus(m)
		return nil

	case "refresh":
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		printStatus(m)
		return nil

	case "signout":
		return m.SignOut(ctx)

	default:
		return fmt.Errorf("unrecognized mode %q", mode)
	}
}

func printStatus(m *session.Manager) {
	if s := m.Current(); s != nil {
		fmt.Printf("signed in as %s <%s>, session expires %s\n",
			s.User.Name, s.User.Email, s.ExpiresAt.Format(time.RFC1123))
		return
	}
	fmt.Println("not signed in")
}
