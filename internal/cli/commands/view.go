package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/viewer"
)

// NewViewCommand creates the view command.
func NewViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Serve the rendered charts in the browser",
		Long: `Start a local web page showing the rendered charts.

With watching enabled the page refreshes whenever a chart file in the charts
directory changes, for example after 'creditviz analyze' runs in another
terminal. Press Ctrl+C to stop.`,
		Example: `  creditviz view
  creditviz view --port 9000 --no-open`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return serveViewer(cmd, cc)
		},
	}

	cmd.Flags().Int("port", 0, "Port to listen on (default from config, 8766)")
	cmd.Flags().Bool("no-open", false, "Do not open a browser")
	cmd.Flags().Bool("no-watch", false, "Do not refresh when charts change")

	return cmd
}

// serveViewer runs the viewer until interrupted.
func serveViewer(cmd *cobra.Command, cc *CommandContext) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cc.Renderer
	srv := viewer.NewServer(viewer.Config{
		ChartsDir: cc.Engine.ChartsDir(),
		Port:      cc.Cfg.Viewer.Port,
		Watch:     cc.Cfg.Viewer.Watch,
		AutoOpen:  cc.Cfg.Viewer.AutoOpen,
		Store:     cc.Engine.Store(),
		Logger:    cc.Logger,
		Ready: func(url string) {
			r.Printf("Viewer running at %s (Ctrl+C to stop)\n", url)
		},
	})
	return srv.Serve(ctx)
}
