// Command vted is the terminal entrypoint: it wires a real terminal
// backend, the on-disk settings file, and (optionally) the remote debug
// bridge into a running pkg/editor.Editor and drives its read-key /
// handle-key / render loop until the editor asks to quit. Grounded on
// the teacher's cobra/pflag go.mod dependencies (no cmd/ entrypoint was
// present in the retrieved pkg slice, so the flag surface and raw-mode
// signal handling instead follow other_examples' terminal-driver style,
// e.g. SIGWINCH-driven resize).
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vtedit/core/pkg/config"
	"github.com/vtedit/core/pkg/editor"
	"github.com/vtedit/core/pkg/remote"
	"github.com/vtedit/core/pkg/term"
)

var (
	flagConfig   string
	flagTabWidth int
	flagTheme    string
	flagListen   string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "vted [file]",
		Short: "vted is a modal terminal text editor",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEditor,
	}

	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "vted", "config.yaml")

	root.Flags().StringVar(&flagConfig, "config", defaultConfig, "path to the yaml settings file")
	root.Flags().IntVar(&flagTabWidth, "tabwidth", 0, "override tabwidth (0 keeps the config file's value)")
	root.Flags().StringVar(&flagTheme, "theme", "", "override theme (empty keeps the config file's value)")
	root.Flags().StringVar(&flagListen, "listen", "", "address for the remote debug bridge, e.g. :7331 (empty disables it)")

	return root
}

func runEditor(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("vted: loading config: %w", err)
	}
	if flagTabWidth > 0 {
		settings.TabWidth = flagTabWidth
	}
	if flagTheme != "" {
		settings.Theme = flagTheme
	}

	backend := term.NewANSITerminal(os.Stdin, os.Stdout)
	if err := backend.EnterRaw(); err != nil {
		return fmt.Errorf("vted: entering raw mode: %w", err)
	}
	defer backend.ExitRaw()
	defer backend.ShowCursor()

	e, err := editor.New(backend)
	if err != nil {
		return fmt.Errorf("vted: initializing editor: %w", err)
	}
	*e.Settings() = *settings

	if len(args) == 1 {
		if _, err := e.OpenFile(args[0]); err != nil {
			return fmt.Errorf("vted: opening %s: %w", args[0], err)
		}
	}

	var hub *remote.Hub
	if flagListen != "" {
		hub = remote.NewHub()
		defer hub.Close()
		go func() {
			if err := runRemoteBridge(flagListen, hub); err != nil {
				log.Printf("[vted] remote bridge stopped: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	keys := make(chan term.Key, 64)
	go readKeys(backend, keys)

	return runLoop(e, backend, hub, keys, sigCh)
}

func readKeys(backend *term.ANSITerminal, out chan<- term.Key) {
	for {
		k, err := backend.ReadKey()
		if err != nil {
			close(out)
			return
		}
		out <- k
	}
}

func runLoop(e *editor.Editor, backend *term.ANSITerminal, hub *remote.Hub, keys <-chan term.Key, sigCh <-chan os.Signal) error {
	if err := e.Render(); err != nil {
		return fmt.Errorf("vted: initial render: %w", err)
	}

	var remoteKeys <-chan term.Key
	if hub != nil {
		remoteKeys = hub.Keys()
	}

	// pollInterval bounds how long the loop can go without calling
	// e.Tick, per spec.md §5's "short timeout (≈50ms default) so pending
	// notifications, job messages, and animations progress" even when
	// the user isn't pressing keys.
	const pollInterval = 50 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var k term.Key
		haveKey := false
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGWINCH:
				rows, cols, err := backend.Size()
				if err == nil {
					e.Resize(rows, cols)
				}
				continue
			default:
				return nil
			}
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			k, haveKey = key, true
		case key := <-remoteKeys:
			k, haveKey = key, true
		case <-ticker.C:
			// no input this tick; fall through to drain jobs/notifications and redraw.
		}

		if haveKey {
			if err := e.HandleKey(k); err != nil {
				log.Printf("[vted] handle key: %v", err)
			}
		}
		if e.ShouldQuit() {
			return nil
		}

		e.Tick(time.Now())
		if err := e.Render(); err != nil {
			return fmt.Errorf("vted: render: %w", err)
		}
		if hub != nil {
			pushRemoteFrame(e, hub)
		}
	}
}

var frameGeneration uint64

func pushRemoteFrame(e *editor.Editor, hub *remote.Hub) {
	grid, cursorRow, cursorCol := e.Frame()
	frameGeneration++
	hub.Broadcast(remote.FrameFromGrid(grid, cursorRow, cursorCol, frameGeneration))
}

func runRemoteBridge(addr string, hub *remote.Hub) error {
	srv := &http.Server{Addr: addr, Handler: hub.Router()}
	log.Printf("[vted] remote debug bridge listening on %s", addr)
	return srv.ListenAndServe()
}
