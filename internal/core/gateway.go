package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/i18n"
	"github.com/orrn/todoprint/internal/motivation"
	"github.com/orrn/todoprint/internal/power"
	"github.com/orrn/todoprint/internal/printer"
)

var (
	ErrConnectionFailed = errors.New("printer connection failed")
	ErrTransportFailed  = errors.New("printer transport failed")
)

// GatewayConfig carries the delivery-side settings the gateway needs.
type GatewayConfig struct {
	// PowerWait is the settle time after a power-on signal.
	PowerWait time.Duration
	// IdleTimeout is how long after the last delivery the power-off
	// signal fires.
	IdleTimeout time.Duration
	// Language is the default receipt language; jobs may override it.
	Language string
}

// Gateway owns the single printer connection and serializes every delivery
// attempt through one mutex. The idle-timeout handler takes the same mutex,
// so session state is only ever touched by one path at a time.
type Gateway struct {
	transport  printer.Transport
	power      power.Controller
	generator  *ReceiptGenerator
	motivation motivation.Provider
	cfg        GatewayConfig
	log        zerolog.Logger

	mu            sync.Mutex
	printerActive bool
	idleTimer     *time.Timer
	timerGen      uint64

	// test seams
	sleep func(time.Duration)
	now   func() time.Time
}

// NewGateway builds a gateway. powerCtrl may be nil, in which case no power
// sequencing happens and no idle timer is scheduled.
func NewGateway(transport printer.Transport, powerCtrl power.Controller, motivator motivation.Provider, cfg GatewayConfig, log zerolog.Logger) *Gateway {
	if motivator == nil {
		motivator = motivation.Static{}
	}
	if cfg.Language == "" {
		cfg.Language = i18n.DefaultLanguage
	}
	return &Gateway{
		transport:  transport,
		power:      powerCtrl,
		generator:  NewReceiptGenerator(),
		motivation: motivator,
		cfg:        cfg,
		log:        log.With().Str("component", "gateway").Logger(),
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Deliver runs one physical delivery attempt end to end: power sequencing,
// connection, transmit, and idle-timeout rescheduling. Exactly one Deliver
// executes at a time system-wide. The idle deadline is rescheduled whether
// the attempt succeeded or not: a failed attempt is still printer activity.
func (g *Gateway) Deliver(ctx context.Context, text string, priority int, language string, isRetry bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.power != nil {
		// Retries re-assert power even when the session looks active, in
		// case the device drifted out from under us.
		if !g.printerActive || isRetry {
			if !g.power.SendBeforePrint() {
				g.log.Warn().Msg("power-on signal not delivered, printing anyway")
			}
			g.sleep(g.cfg.PowerWait)
			g.printerActive = true
		}
		g.cancelIdleLocked()
		defer g.scheduleIdleLocked()
	}

	if !g.transport.Connected() {
		if err := g.transport.Connect(); err != nil {
			g.log.Error().Err(err).Bool("retry", isRetry).Msg("printer connect failed")
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		g.log.Info().Msg("printer connected")
	}

	if language == "" || !i18n.Supported(language) {
		language = g.cfg.Language
	}

	quote := g.motivation.GetMotivation(ctx, text, priority, language)
	data := g.generator.Generate(text, priority, language, g.now(), quote)

	if err := g.transport.Write(data); err != nil {
		// The transport tears its connection down on a failed write; the
		// next attempt reconnects from scratch.
		g.log.Error().Err(err).Bool("retry", isRetry).Msg("printer write failed")
		return fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	g.log.Info().Int("priority", priority).Bool("retry", isRetry).Msg("task printed")
	return nil
}

// cancelIdleLocked stops any pending idle deadline. Bumping the generation
// makes a timer that already fired and is waiting on the mutex a no-op.
func (g *Gateway) cancelIdleLocked() {
	g.timerGen++
	if g.idleTimer != nil {
		g.idleTimer.Stop()
		g.idleTimer = nil
	}
}

func (g *Gateway) scheduleIdleLocked() {
	g.timerGen++
	gen := g.timerGen
	g.idleTimer = time.AfterFunc(g.cfg.IdleTimeout, func() {
		g.onIdleTimeout(gen)
	})
}

func (g *Gateway) onIdleTimeout(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.timerGen {
		return
	}
	g.idleTimer = nil

	if !g.power.SendAfterTimeout() {
		g.log.Warn().Msg("power-off signal not delivered")
	}
	g.printerActive = false
	g.log.Info().Msg("printer idle timeout, sent power-off signal")
}

// Active reports whether the power-on side effect is currently in force.
func (g *Gateway) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.printerActive
}

// Cleanup cancels any pending idle timer without firing it and releases the
// printer connection.
func (g *Gateway) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelIdleLocked()
	g.printerActive = false
	if err := g.transport.Close(); err != nil {
		g.log.Warn().Err(err).Msg("error closing printer connection")
	}
}
