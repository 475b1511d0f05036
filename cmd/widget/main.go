// Command widget runs the airtime widget as an interactive terminal demo with
// an ops HTTP server for health and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxr/airtime-widget/internal/domain"
	"github.com/fluxr/airtime-widget/internal/flow"
	"github.com/fluxr/airtime-widget/internal/gateway"
	"github.com/fluxr/airtime-widget/internal/health"
	"github.com/fluxr/airtime-widget/internal/lifecycle"
	"github.com/fluxr/airtime-widget/internal/render"
	"github.com/fluxr/airtime-widget/internal/widget"
	"github.com/fluxr/airtime-widget/pkg/config"
	"github.com/fluxr/airtime-widget/pkg/graceful"
	"github.com/fluxr/airtime-widget/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:         cfg.LogLevel,
		File:          cfg.LogFile,
		SentryEnabled: cfg.SentryDSN != "",
	})
	slog.SetDefault(log)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Error("sentry init failed", slog.Any("error", err))
		}
	}

	log.Info("starting airtime widget demo",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.HTTPPort),
		slog.String("gateway_mode", cfg.Gateway.Mode),
	)

	var gw gateway.Client
	checker := health.NewChecker(log)
	switch cfg.Gateway.Mode {
	case config.GatewayModeHTTP:
		gw = gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Widget.PublicKey, log)
		checker.AddCheck("backend", health.NewBackendChecker(cfg.Gateway.BaseURL))
	default:
		gw = gateway.NewMock(cfg.Widget.SupportedCountries)
		checker.AddCheck("gateway", health.CheckFunc(func(context.Context) error { return nil }))
	}

	renderer := render.NewTextRenderer(os.Stdout, log)

	w, err := widget.New(cfg, gw, renderer, widget.Callbacks{
		OnOpen:  func() { log.Info("widget opened") },
		OnClose: func() { log.Info("widget closed") },
		OnStepChange: func(step int) {
			log.Info("step changed", slog.Int("step", step), slog.String("title", render.Title(flow.Step(step))))
		},
		OnError: func(e widget.Error) {
			log.Warn("widget error", slog.String("code", e.Code), slog.String("message", e.Message))
		},
		OnSuccess: func(p widget.SuccessPayload) {
			log.Info("airtime sent",
				slog.String("reference", p.Reference),
				slog.Float64("amount_usd", p.AmountUsd),
				slog.String("method", string(p.Method)),
			)
		},
	}, log)
	if err != nil {
		log.Error("widget init failed", slog.Any("error", err))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", checker.Handler())

	srv := graceful.NewServer(log, &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, shutdownTimeout)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server error", slog.Any("error", err))
		}
	}()

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("widget", func(context.Context) error {
		w.Close()
		w.Wait()
		w.Teardown()
		return nil
	})
	shutdown.Register("sentry", func(context.Context) error {
		if cfg.SentryDSN != "" {
			sentry.Flush(2 * time.Second)
		}
		return nil
	})

	runPromptLoop(ctx, w, log)

	stop()
	<-serverDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("airtime widget demo stopped")
}

// runPromptLoop drives the checkout flow from the terminal until the user
// quits or the context is canceled.
func runPromptLoop(ctx context.Context, w *widget.Widget, log *slog.Logger) {
	w.Open()

	for ctx.Err() == nil {
		state := w.State()

		var done bool
		switch state.Step {
		case flow.StepReceiver:
			done = promptReceiver(ctx, w, state)
		case flow.StepSelection:
			done = promptSelection(w, state)
		case flow.StepReview:
			done = promptReview(ctx, w, state)
		case flow.StepSuccess:
			fmt.Printf("\nAirtime sent. Reference: %s\n\n", state.Reference)
			done = true
		default:
			done = true
		}

		if done {
			return
		}
	}
}

func promptReceiver(ctx context.Context, w *widget.Widget, state flow.Session) bool {
	items := []string{
		"Payment method: " + string(state.Method),
		"Country: " + state.SelectedCountry.Flag + " " + state.SelectedCountry.Name,
		"Phone: " + state.PhoneE164,
	}
	if state.Method == domain.MethodVoucher {
		items = append(items, "Voucher: "+state.VoucherCode)
	} else {
		items = append(items, "Amount: "+state.AmountRaw)
	}
	items = append(items, "Continue", "Quit")

	idx, _, err := (&promptui.Select{Label: render.Title(flow.StepReceiver), Items: items}).Run()
	if err != nil {
		return true
	}

	switch idx {
	case 0:
		method, quit := promptMethod()
		if quit {
			return false
		}
		w.SetMethod(method)
	case 1:
		promptCountry(w)
	case 2:
		digits, err := (&promptui.Prompt{Label: "Phone (digits after " + state.SelectedCountry.Code + ")"}).Run()
		if err != nil {
			return false
		}
		w.UpdatePhoneNumber(digits)
		w.HandlePhoneBlur(ctx, digits)
		w.Wait()
	case 3:
		if state.Method == domain.MethodVoucher {
			code, err := (&promptui.Prompt{Label: "Voucher code"}).Run()
			if err != nil {
				return false
			}
			w.UpdateVoucher(code)
		} else {
			raw, err := (&promptui.Prompt{Label: "Amount (USD)"}).Run()
			if err != nil {
				return false
			}
			w.UpdateAmount(raw)
		}
	case 4:
		w.ContinueStep1(ctx)
		w.Wait()
	default:
		return true
	}

	return false
}

func promptMethod() (domain.Method, bool) {
	idx, _, err := (&promptui.Select{
		Label: "Payment method",
		Items: []string{"Voucher", "Card"},
	}).Run()
	if err != nil {
		return "", true
	}
	if idx == 1 {
		return domain.MethodCard, false
	}
	return domain.MethodVoucher, false
}

func promptCountry(w *widget.Widget) {
	countries := w.Countries()
	items := make([]string, len(countries))
	for i, country := range countries {
		items[i] = country.Flag + " " + country.Name + " (" + country.Code + ")"
	}

	idx, _, err := (&promptui.Select{Label: "Country", Items: items, Size: 12}).Run()
	if err != nil {
		return
	}

	w.SelectCountry(countries[idx].Code)
}

func promptSelection(w *widget.Widget, state flow.Session) bool {
	if state.BundlesLoading {
		w.Wait()
		return false
	}

	items := []string{fmt.Sprintf("Full airtime (%.2f)", state.AvailableValueUsd)}
	for _, bundle := range state.Bundles {
		items = append(items, fmt.Sprintf("%s ($%s)", bundle.Name, strconv.FormatFloat(bundle.PriceUsd, 'f', 2, 64)))
	}
	items = append(items, "Back", "Continue", "Quit")

	idx, _, err := (&promptui.Select{Label: render.Title(flow.StepSelection), Items: items, Size: 10}).Run()
	if err != nil {
		return true
	}

	switch {
	case idx == 0:
		w.SelectFull()
	case idx <= len(state.Bundles):
		bundle := state.Bundles[idx-1]
		w.SelectBundle(bundle.ID, bundle.Name, bundle.PriceUsd)
	case idx == len(state.Bundles)+1:
		w.GoBack()
	case idx == len(state.Bundles)+2:
		w.ContinueStep2()
	default:
		return true
	}

	return false
}

func promptReview(ctx context.Context, w *widget.Widget, state flow.Session) bool {
	if state.PaymentPending {
		w.Wait()
		return false
	}

	label := render.Title(flow.StepReview)
	if state.Selection != nil {
		label = fmt.Sprintf("%s: %s to %s", label, state.Selection.Label, state.PhoneE164)
	}

	idx, _, err := (&promptui.Select{
		Label: label,
		Items: []string{"Confirm & pay", "Back", "Quit"},
	}).Run()
	if err != nil {
		return true
	}

	switch idx {
	case 0:
		w.ProcessPayment(ctx)
		w.Wait()
	case 1:
		w.GoBack()
	default:
		return true
	}

	return false
}
