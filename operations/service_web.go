package operations

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/rest/route"
	"github.com/evergreen-ci/mongorest/service"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const shutdownTimeout = 30 * time.Second

func startWebService() cli.Command {
	return cli.Command{
		Name:  "web",
		Usage: "serve the REST API of the configured models",
		Flags: serviceConfigFlags(cli.StringFlag{
			Name:  addrFlagName,
			Usage: "address to listen on, overriding the settings file",
		}),
		Before: requireConfigFile(confFlagName),
		Action: func(c *cli.Context) error {
			confPath := c.String(confFlagName)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			env, err := mongorest.NewEnvironment(ctx, confPath, nil)
			grip.EmergencyFatal(errors.Wrap(err, "configuring application environment"))
			mongorest.SetEnvironment(env)

			grip.EmergencyFatal(errors.Wrap(grip.SetSender(env.Sender()), "setting log sender"))
			defer recovery.LogStackTraceAndExit("mongorest web service")

			grip.Notice(message.Fields{"build": mongorest.BuildRevision, "process": grip.Name()})

			settings := env.Settings()
			addr := settings.Api.HttpListenAddr
			if override := c.String(addrFlagName); override != "" {
				addr = override
			}

			handler, err := service.GetRouter(env, route.NewHandlerOptions(env))
			if err != nil {
				return errors.Wrap(err, "building router")
			}
			srv := service.GetServer(addr, handler)

			go listenForSIGTERM(cancel)

			serviceWait := make(chan struct{})
			go func() {
				defer close(serviceWait)
				defer recovery.LogStackTraceAndContinue("web server")
				err := srv.ListenAndServe()
				if !errors.Is(err, http.ErrServerClosed) {
					grip.Error(errors.Wrap(err, "running web server"))
				}
				cancel()
			}()

			<-ctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			catcher := grip.NewBasicCatcher()
			catcher.Wrap(srv.Shutdown(shutdownCtx), "shutting down web server")
			<-serviceWait
			catcher.Wrap(env.Close(shutdownCtx), "closing environment")
			grip.Notice("web service terminated")

			return catcher.Resolve()
		},
	}
}

// listenForSIGTERM cancels the context when SIGTERM or SIGINT is
// received.
func listenForSIGTERM(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	grip.Infof("received %s, terminating", sig)
	cancel()
}
