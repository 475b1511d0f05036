package flow

// Region names a view fragment that can be refreshed without a full
// re-render. Targeted refreshes keep focused input elements alive while the
// user is typing.
type Region string

const (
	RegionMethod  Region = "method"
	RegionPhone   Region = "phone"
	RegionVoucher Region = "voucher"
	RegionAmount  Region = "amount"
	RegionOptions Region = "options"
	RegionReview  Region = "review"
	RegionNotice  Region = "notice"
	RegionErrors  Region = "errors"
)

// Renderer is the rendering-surface contract the engine drives. RenderStep is
// called on every step change with a fresh snapshot; Refresh is called for
// mutations that do not change the step and must only repaint the named
// region.
type Renderer interface {
	RenderStep(s Session)
	Refresh(region Region, s Session)
}

// NopRenderer discards all render calls. Useful for headless embedding and
// tests that only observe events.
type NopRenderer struct{}

func (NopRenderer) RenderStep(Session)      {}
func (NopRenderer) Refresh(Region, Session) {}
