package compiler

import "github.com/roach88/uipulse/internal/ir"

// Surface is the static action API surface the compiler lowers against: the
// store namespaces handlers may read and mutate, and the qualified callable
// names that lower to action descriptors. Any call outside this table, and
// any identifier that is not a registered namespace or the handler's event
// parameter, is a compile rejection.
type Surface struct {
	// Stores maps a handler-visible namespace identifier to the store it
	// references, e.g. "store" -> the app store.
	Stores map[string]ir.StoreRef
	// Actions maps a qualified call name, e.g. "ui.showToast", to the
	// action kind it lowers to.
	Actions map[string]string
}

// DefaultSurface returns the standard handler API: store accessors on
// "store" (app), "prefs", and "session", plus the ui/nav/system/net/flow
// namespaces.
func DefaultSurface() *Surface {
	return &Surface{
		Stores: map[string]ir.StoreRef{
			"store":   {Store: "app"},
			"prefs":   {Store: "prefs"},
			"session": {Store: "session"},
		},
		Actions: map[string]string{
			"ui.showToast":    ir.KindShowToast,
			"ui.showAlert":    ir.KindShowAlert,
			"ui.showSheet":    ir.KindShowSheet,
			"ui.dismissSheet": ir.KindDismissSheet,
			"ui.showLoading":  ir.KindShowLoading,
			"ui.hideLoading":  ir.KindHideLoading,

			"nav.push":         ir.KindNavigate,
			"nav.pop":          ir.KindNavigate,
			"nav.replace":      ir.KindNavigate,
			"nav.modal":        ir.KindNavigate,
			"nav.dismissModal": ir.KindNavigate,
			"nav.popTo":        ir.KindNavigate,
			"nav.reset":        ir.KindNavigate,

			"system.share":             ir.KindSystem,
			"system.openUrl":           ir.KindSystem,
			"system.haptic":            ir.KindSystem,
			"system.copyToClipboard":   ir.KindSystem,
			"system.requestPermission": ir.KindSystem,

			"net.request": ir.KindRequest,

			"flow.parallel": ir.KindSequence,
		},
	}
}

// storeRef resolves a namespace identifier to its store reference.
func (s *Surface) storeRef(name string) (ir.StoreRef, bool) {
	ref, ok := s.Stores[name]
	return ref, ok
}

// actionKind resolves a qualified call name to its action kind.
func (s *Surface) actionKind(qualified string) (string, bool) {
	kind, ok := s.Actions[qualified]
	return kind, ok
}
