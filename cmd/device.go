// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/eeprom"
	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/creack/pty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	devicePTY             bool
	deviceListen          string
	deviceImage           string
	deviceEcho            bool
	deviceRealisticTiming bool
	deviceReceiveTimeout  time.Duration
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Run the simulated EEPROM mirror device",
	Long: `Run a simulated device that behaves like the mirror firmware.

Each session erases the EEPROM, waits for the handshake, stores the received
frame, verifies its checksum, commits its own checksum after the payload and
sends the stored bytes back.

Endpoints:
  --port /dev/ttyUSB1     serve on a serial port
  --pty                   serve on a new pseudo-terminal and print its path
  --listen :8080          accept one WebSocket host at a time
  --url ws://host/path    connect out to a WebSocket bridge

The EEPROM contents survive restarts with --image.`,
	RunE: runDevice,
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.Flags().BoolVar(&devicePTY, "pty", false, "Serve on a new pseudo-terminal")
	deviceCmd.Flags().StringVar(&deviceListen, "listen", "", "Serve WebSocket hosts on this address")
	deviceCmd.Flags().StringVar(&deviceImage, "image", "", "EEPROM image file, loaded at start and saved after each session")
	deviceCmd.Flags().BoolVar(&deviceEcho, "echo-diagnostics", false, "Send verification messages to the host before the readback")
	deviceCmd.Flags().BoolVar(&deviceRealisticTiming, "realistic-timing", false, "Simulate AVR EEPROM programming times")
	deviceCmd.Flags().DurationVar(&deviceReceiveTimeout, "receive-timeout", 0, "Abandon a frame after this long without a byte (0 waits forever)")
}

// deviceServer shares one EEPROM between the sessions of every endpoint
type deviceServer struct {
	mirror *eeprom.Mirror
	stats  *mirrorlink.Statistics
	mu     sync.Mutex
}

func newDeviceServer() (*deviceServer, error) {
	var opts []eeprom.Option
	if deviceRealisticTiming {
		opts = append(opts, eeprom.WithTiming(eeprom.AVRTiming))
	}
	mirror := eeprom.NewMirror(capacity, opts...)

	if deviceImage != "" {
		err := mirror.LoadImage(deviceImage)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("no image yet, starting blank", "image", deviceImage)
		case err != nil:
			return nil, err
		default:
			logger.Info("image loaded", "image", deviceImage)
		}
	}

	return &deviceServer{
		mirror: mirror,
		stats:  mirrorlink.NewStatistics(),
	}, nil
}

func (s *deviceServer) onSession(report *mirrorlink.SessionReport) {
	fmt.Println(mirrorlink.FormatSessionReport(report))
	if deviceImage == "" {
		return
	}
	if err := s.mirror.SaveImage(deviceImage); err != nil {
		logger.Error("failed to save image", "image", deviceImage, "err", err)
	}
}

// serve runs the device on drv until ctx is done or the link closes
func (s *deviceServer) serve(ctx context.Context, drv link.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev := mirrorlink.NewDevice(drv, s.mirror,
		mirrorlink.WithDeviceCapacity(capacity),
		mirrorlink.WithReceiveTimeout(deviceReceiveTimeout),
		mirrorlink.WithEchoDiagnostics(deviceEcho),
		mirrorlink.WithDeviceLogger(logger),
		mirrorlink.WithDeviceStatistics(s.stats),
		mirrorlink.WithSessionCallback(s.onSession),
	)
	return dev.Serve(ctx)
}

func runDevice(cmd *cobra.Command, args []string) error {
	server, err := newDeviceServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Mirrorlink - Simulated Device\n")
	fmt.Printf("EEPROM: %d bytes\n", server.mirror.Size())

	switch {
	case devicePTY:
		err = servePTY(ctx, server)
	case deviceListen != "":
		err = serveWebSocket(ctx, server)
	default:
		var conn link.Driver
		var connInfo string
		conn, connInfo, err = OpenConnection()
		if err != nil {
			return exitWith(2, fmt.Errorf("connection error: %w", err))
		}
		defer conn.Close()
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Press Ctrl+C to exit\n\n")
		err = server.serve(ctx, conn)
	}

	fmt.Println()
	fmt.Print(server.stats.String())

	if errors.Is(err, context.Canceled) || errors.Is(err, link.ErrClosed) {
		return nil
	}
	return err
}

func servePTY(ctx context.Context, server *deviceServer) error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return exitWith(2, fmt.Errorf("failed to open pty: %w", err))
	}
	defer tty.Close()

	// No echo or line editing on the host side of the pty
	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		ptmx.Close()
		return fmt.Errorf("failed to set pty raw: %w", err)
	}

	conn := link.NewStream(ptmx)
	defer conn.Close()

	fmt.Printf("Connection: pty %s\n", tty.Name())
	fmt.Printf("Run: mirrorlink send --port %s --data ...\n", tty.Name())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return server.serve(ctx, conn)
}

func serveWebSocket(ctx context.Context, server *deviceServer) error {
	var busy sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !busy.TryLock() {
			http.Error(w, "device busy", http.StatusServiceUnavailable)
			return
		}
		defer busy.Unlock()

		conn, err := link.AcceptWebSocket(w, r)
		if err != nil {
			logger.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close()

		logger.Info("host connected", "remote", r.RemoteAddr)
		err = server.serve(ctx, conn)
		logger.Info("host disconnected", "remote", r.RemoteAddr, "err", err)
	})

	srv := &http.Server{
		Addr:              deviceListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Listening: ws://%s/\n", deviceListen)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return exitWith(2, err)
	}
	return ctx.Err()
}
