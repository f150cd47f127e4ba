// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/eeprom"
	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/spf13/cobra"
)

var selftestLatency time.Duration

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run host and simulated device against each other in-process",
	Long: `Run the reference scenarios between a host and a simulated device joined by
an in-memory link. No hardware is needed.

  A - clean transfer of "AB"
  B - offset 7 replaced by '0': device reports corruption, data still committed
  C - payload of capacity-1 bytes succeeds, capacity bytes is rejected
  D - silent device: handshake timeout before any payload byte

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed`,
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
	selftestCmd.Flags().DurationVar(&selftestLatency, "latency", 0, "Simulated per-byte link latency")
}

type selftestScenario struct {
	name string
	run  func(ctx context.Context) error
}

// selftestEnv is a device serving one end of an in-memory link
type selftestEnv struct {
	hostEnd *link.PipeEnd
	mirror  *eeprom.Mirror
	reports chan *mirrorlink.SessionReport
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSelftestEnv(size int) *selftestEnv {
	hostEnd, deviceEnd := link.Pipe()
	hostEnd.SetLatency(selftestLatency)
	deviceEnd.SetLatency(selftestLatency)

	env := &selftestEnv{
		hostEnd: hostEnd,
		mirror:  eeprom.NewMirror(size),
		reports: make(chan *mirrorlink.SessionReport, 4),
		done:    make(chan struct{}),
	}
	dev := mirrorlink.NewDevice(deviceEnd, env.mirror,
		mirrorlink.WithPollInterval(10*time.Millisecond),
		mirrorlink.WithDeviceLogger(logger),
		mirrorlink.WithSessionCallback(func(r *mirrorlink.SessionReport) { env.reports <- r }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	go func() {
		defer close(env.done)
		_ = dev.Serve(ctx)
	}()
	return env
}

func (e *selftestEnv) close() {
	e.cancel()
	e.hostEnd.Close()
	<-e.done
}

func (e *selftestEnv) host(opts ...mirrorlink.HostOption) *mirrorlink.Host {
	opts = append([]mirrorlink.HostOption{
		mirrorlink.WithCapacity(e.mirror.Size()),
		mirrorlink.WithTimeout(timeout),
		mirrorlink.WithHostLogger(logger),
	}, opts...)
	return mirrorlink.NewHost(e.hostEnd, opts...)
}

func (e *selftestEnv) report() (*mirrorlink.SessionReport, error) {
	select {
	case r := <-e.reports:
		return r, nil
	case <-time.After(timeout + time.Second):
		return nil, errors.New("device reported no session")
	}
}

func scenarioClean(ctx context.Context) error {
	env := newSelftestEnv(capacity)
	defer env.close()

	payload := []byte("AB")
	result, err := env.host().Transfer(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Print(mirrorlink.FormatTransferResult(result))
	if !result.Intact() {
		return fmt.Errorf("readback %x, want %x", result.Readback, mirrorlink.ExpectedReadback(payload))
	}
	report, err := env.report()
	if err != nil {
		return err
	}
	if report.Verdict != mirrorlink.VerdictOK {
		return fmt.Errorf("device verdict %s, want OK", report.Verdict)
	}
	return nil
}

func scenarioBurst(ctx context.Context) error {
	env := newSelftestEnv(capacity)
	defer env.close()

	result, err := env.host(mirrorlink.WithFault(mirrorlink.LegacyBurstFault())).Transfer(ctx, []byte("Hello, mirror!"))
	if err != nil {
		return err
	}
	fmt.Print(mirrorlink.FormatTransferResult(result))
	report, err := env.report()
	if err != nil {
		return err
	}
	if report.Verdict != mirrorlink.VerdictCorrupt {
		return fmt.Errorf("device verdict %s, want CORRUPT", report.Verdict)
	}
	if !result.Match() {
		return fmt.Errorf("readback %x, want the device's copy %x", result.Readback, result.Expected)
	}
	return nil
}

func scenarioCapacity(ctx context.Context) error {
	env := newSelftestEnv(capacity)
	defer env.close()

	payload := boundaryPayload(capacity - 1)
	result, err := env.host().Transfer(ctx, payload)
	if err != nil {
		return fmt.Errorf("%d byte payload: %w", len(payload), err)
	}
	if !result.Intact() {
		return fmt.Errorf("%d byte payload: readback mismatch", len(payload))
	}
	fmt.Printf("  %d bytes: intact\n", len(payload))
	if _, err := env.report(); err != nil {
		return err
	}

	sent := len(env.hostEnd.Transmitted())
	_, err = env.host().Transfer(ctx, append(payload, 'x'))
	if !errors.Is(err, mirrorlink.ErrPayloadTooLarge) {
		return fmt.Errorf("%d byte payload: got %v, want payload too large", len(payload)+1, err)
	}
	if len(env.hostEnd.Transmitted()) != sent {
		return errors.New("bytes were sent for an oversized payload")
	}
	fmt.Printf("  %d bytes: %v\n", len(payload)+1, err)
	return nil
}

func scenarioSilentDevice(ctx context.Context) error {
	hostEnd, _ := link.Pipe()
	defer hostEnd.Close()

	host := mirrorlink.NewHost(hostEnd,
		mirrorlink.WithTimeout(100*time.Millisecond),
		mirrorlink.WithHostLogger(logger),
	)
	_, err := host.Transfer(ctx, []byte("AB"))
	if !errors.Is(err, mirrorlink.ErrHandshakeTimeout) {
		return fmt.Errorf("got %v, want handshake timeout", err)
	}
	if !bytes.Equal(hostEnd.Transmitted(), []byte{mirrorlink.HandshakeRequest}) {
		return fmt.Errorf("sent %x after a failed handshake", hostEnd.Transmitted())
	}
	fmt.Printf("  %v\n", err)
	return nil
}

// boundaryPayload returns n printable bytes whose frame has no terminator
func boundaryPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = 'a' + byte(i%26)
	}
	for n > 0 && mirrorlink.HasSentinelCollision(payload) {
		payload[n-1]++
	}
	return payload
}

func runSelftest(cmd *cobra.Command, args []string) error {
	if capacity < 16 {
		return fmt.Errorf("--capacity must be at least 16 for the selftest")
	}

	scenarios := []selftestScenario{
		{"A clean transfer", scenarioClean},
		{"B burst error", scenarioBurst},
		{"C capacity boundary", scenarioCapacity},
		{"D silent device", scenarioSilentDevice},
	}

	fmt.Printf("Mirrorlink - Selftest (capacity %d)\n\n", capacity)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	failed := 0
	for _, sc := range scenarios {
		fmt.Printf("=== %s\n", sc.name)
		if err := sc.run(ctx); err != nil {
			failed++
			fmt.Printf("\033[1;31mFAIL\033[0m %s: %v\n\n", sc.name, err)
			continue
		}
		fmt.Printf("\033[1;32mPASS\033[0m %s\n\n", sc.name)
	}

	fmt.Printf("%d/%d scenarios passed\n", len(scenarios)-failed, len(scenarios))
	if failed > 0 {
		return exitWith(1, fmt.Errorf("%d scenario(s) failed", failed))
	}
	return nil
}
