package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/mastercactapus/surfscan/logger"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	addr string
	dir  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the machine over HTTP with a live point stream",
	Long: `serve holds the machine connection and exposes it over HTTP:

  GET  /api/position          current position and fault
  POST /api/move, /api/jog    {"x","y","z","feed"} absolute or relative
  POST /api/mark/start|end    mark a scan corner at the current position
  POST /api/scan?step=&name=  scan the marked rectangle into the data dir
  POST /api/scan/cancel       stop a running scan
  POST /api/resume            clear a halt after a fault
  /data/...                   GET, PUT and DELETE files in the data dir
  /events/points, /events/state  server-sent events`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := os.MkdirAll(serveFlags.dir, 0755); err != nil {
			return err
		}
		s, err := connect(cfg, log)
		if err != nil {
			return err
		}
		defer s.Close()

		a := newAPI(s.c, serveFlags.dir, log)
		defer a.Close()

		srv := &http.Server{Addr: serveFlags.addr, Handler: withAccessLog(a, log)}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", serveFlags.addr)
		err = srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":9091", "address to listen on")
	serveCmd.Flags().StringVar(&serveFlags.dir, "dir", "./data", "data directory")
	rootCmd.AddCommand(serveCmd)
}

func withAccessLog(h http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Debug("request", "method", req.Method, "path", req.URL.Path, "remote", req.RemoteAddr)
		h.ServeHTTP(w, req)
	})
}
