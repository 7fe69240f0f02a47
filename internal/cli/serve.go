package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tasklist-cli/internal/syncserver"
)

func newServeCmd(app *App, defaultAddr string) *cobra.Command {
	var (
		addr        string
		maxClients  int
		connectRate float64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Share the configured store with other tasklist clients over websockets",
		Long: strings.TrimSpace(`
Serve the configured store at /ws so that other tasklist processes can use
--store ws://HOST:PORT/ws. /healthz reports liveness and /metrics exposes
Prometheus metrics.
`),
		Example: strings.TrimSpace(`
# Share a sqlite file on the local network
tasklist --store sqlite:///srv/tasklist.db serve --addr :7777

# Put a websocket front on redis
tasklist --store redis://localhost:6379/0 serve
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			srv, err := syncserver.NewServer(syncserver.ServerConfig{
				Addr:     addr,
				Store:    st,
				Logger:   app.log(),
				Registry: reg,

				MaxClients:   maxClients,
				ConnectRate:  connectRate,
				ConnectBurst: int(connectRate*2) + 1,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			listenAddr := srv.Addr()
			if listenAddr == "" {
				return writeErr(cmd, fmt.Errorf("serve: missing --addr"))
			}

			_ = writeOut(cmd, app, map[string]any{
				"addr":      listenAddr,
				"store":     app.Store,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				"_hints": []string{
					"tasklist --store ws://" + wsHost(listenAddr) + "/ws",
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "tasklist sync server running at ws://%s/ws\n", wsHost(listenAddr))

			if err := srv.ListenAndServe(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "Listen address")
	cmd.Flags().IntVar(&maxClients, "max-clients", 1000, "Maximum concurrent clients (0: unlimited)")
	cmd.Flags().Float64Var(&connectRate, "connect-rate", 5, "New connections per second allowed from one IP (0: unlimited)")
	return cmd
}

// wsHost turns ":7777" into "localhost:7777" for the hint.
func wsHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
