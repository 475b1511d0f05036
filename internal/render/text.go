package render

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/fluxr/airtime-widget/internal/domain"
	"github.com/fluxr/airtime-widget/internal/flow"
)

// StepView draws one full step of the flow.
type StepView func(w io.Writer, s flow.Session)

// RegionView draws one refreshable fragment without repainting the step.
type RegionView func(w io.Writer, s flow.Session)

// TextRenderer writes the session state as plain text. Full repaints happen
// only on step changes; region refreshes append just the affected fragment,
// which is the text-surface analog of not destroying a focused input element.
type TextRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	views   map[flow.Step]StepView
	regions map[flow.Region]RegionView
	log     *slog.Logger
}

// NewTextRenderer builds a renderer with the default step and region views.
func NewTextRenderer(w io.Writer, log *slog.Logger) *TextRenderer {
	if log == nil {
		log = slog.Default()
	}

	r := &TextRenderer{
		w:       w,
		views:   make(map[flow.Step]StepView),
		regions: make(map[flow.Region]RegionView),
		log:     log,
	}

	r.RegisterStepView(flow.StepClosed, renderClosed)
	r.RegisterStepView(flow.StepReceiver, renderReceiver)
	r.RegisterStepView(flow.StepSelection, renderSelection)
	r.RegisterStepView(flow.StepReview, renderReview)
	r.RegisterStepView(flow.StepSuccess, renderSuccess)

	r.RegisterRegionView(flow.RegionMethod, regionMethod)
	r.RegisterRegionView(flow.RegionPhone, regionPhone)
	r.RegisterRegionView(flow.RegionVoucher, regionVoucher)
	r.RegisterRegionView(flow.RegionAmount, regionAmount)
	r.RegisterRegionView(flow.RegionOptions, regionOptions)
	r.RegisterRegionView(flow.RegionReview, regionReview)
	r.RegisterRegionView(flow.RegionNotice, regionNotice)
	r.RegisterRegionView(flow.RegionErrors, regionErrors)

	return r
}

// RegisterStepView registers or replaces the view for a step.
func (r *TextRenderer) RegisterStepView(step flow.Step, view StepView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[step] = view
}

// RegisterRegionView registers or replaces the view for a region.
func (r *TextRenderer) RegisterRegionView(region flow.Region, view RegionView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[region] = view
}

// RenderStep repaints the whole step.
func (r *TextRenderer) RenderStep(s flow.Session) {
	r.mu.Lock()
	view := r.views[s.Step]
	r.mu.Unlock()

	if view == nil {
		r.log.Warn("no view registered for step", "step", s.Step.String())
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "\n=== %s ===\n", Title(s.Step))
	view(r.w, s)
}

// Refresh repaints just the named region.
func (r *TextRenderer) Refresh(region flow.Region, s flow.Session) {
	r.mu.Lock()
	view := r.regions[region]
	r.mu.Unlock()

	if view == nil {
		r.log.Warn("no view registered for region", "region", string(region))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	view(r.w, s)
}

func renderClosed(w io.Writer, s flow.Session) {
	fmt.Fprintln(w, "[ Send Airtime Home ]")
}

func renderReceiver(w io.Writer, s flow.Session) {
	regionMethod(w, s)
	regionPhone(w, s)
	if s.Method == domain.MethodVoucher {
		regionVoucher(w, s)
	} else {
		regionAmount(w, s)
	}
	regionErrors(w, s)
}

func renderSelection(w io.Writer, s flow.Session) {
	fmt.Fprintf(w, "%s • %s\n", s.PhoneE164, s.Network)
	regionOptions(w, s)
	regionErrors(w, s)
}

func renderReview(w io.Writer, s flow.Session) {
	regionReview(w, s)
	regionNotice(w, s)
}

func renderSuccess(w io.Writer, s flow.Session) {
	fmt.Fprintln(w, "✓ Airtime sent")
	fmt.Fprintf(w, "Reference: %s\n", s.Reference)
}

func regionMethod(w io.Writer, s flow.Session) {
	voucherMark, cardMark := " ", " "
	if s.Method == domain.MethodVoucher {
		voucherMark = "x"
	} else {
		cardMark = "x"
	}
	fmt.Fprintf(w, "Method: [%s] Voucher (SA)  [%s] Card Payment\n", voucherMark, cardMark)
}

func regionPhone(w io.Writer, s flow.Session) {
	fmt.Fprintf(w, "Receiver: %s %s %s", s.SelectedCountry.Flag, s.SelectedCountry.Code, s.PhoneE164)
	if s.Network != "" {
		fmt.Fprintf(w, " (%s)", s.Network)
	}
	fmt.Fprintln(w)
}

func regionVoucher(w io.Writer, s flow.Session) {
	fmt.Fprintf(w, "Voucher code: %s\n", s.VoucherCode)
}

func regionAmount(w io.Writer, s flow.Session) {
	fmt.Fprintf(w, "Amount (USD): %s\n", s.AmountRaw)
}

func regionOptions(w io.Writer, s flow.Session) {
	if s.BundlesLoading {
		fmt.Fprintln(w, "Finding bundles...")
		return
	}

	mark := " "
	if s.Selection != nil && s.Selection.Type == domain.SelectionFull {
		mark = "x"
	}
	fmt.Fprintf(w, "[%s] Full airtime (%.2f)\n", mark, s.AvailableValueUsd)

	for _, b := range s.Bundles {
		mark = " "
		if s.Selection != nil && s.Selection.BundleID == b.ID {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s (%.2f)\n", mark, b.Name, b.PriceUsd)
	}
}

func regionReview(w io.Writer, s flow.Session) {
	if s.PaymentPending {
		fmt.Fprintln(w, "Processing payment...")
		return
	}

	if s.Selection == nil {
		fmt.Fprintln(w, "No selection made.")
		return
	}

	fmt.Fprintf(w, "Receiver:  %s\n", s.PhoneE164)
	fmt.Fprintf(w, "Network:   %s\n", s.Network)
	fmt.Fprintf(w, "Selection: %s\n", s.Selection.Label)
	fmt.Fprintf(w, "Total:     %.2f USD\n", s.Selection.PriceUsd)
}

func regionNotice(w io.Writer, s flow.Session) {
	if s.Notice == "" {
		return
	}
	fmt.Fprintf(w, "! %s\n", s.Notice)
}

func regionErrors(w io.Writer, s flow.Session) {
	if len(s.Errors) == 0 {
		return
	}

	fields := make([]string, 0, len(s.Errors))
	for field := range s.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		fmt.Fprintf(w, "⚠ %s: %s\n", field, s.Errors[field])
	}
}
