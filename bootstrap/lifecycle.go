package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/registry"
)

// ModuleSource lists loaded modules in discovery order.
type ModuleSource interface {
	All() []*registry.RegisteredModule
}

// PlacedView is a view a module contributed at main-window creation.
type PlacedView struct {
	Module string
	View   plugin.View
	OnTop  bool
}

// Lifecycle forwards host lifecycle notifications to every loaded module
// that implements the matching hook, in discovery order. A panicking hook
// is logged and the remaining modules are still notified.
type Lifecycle struct {
	modules ModuleSource
	logger  zerolog.Logger
}

// NewLifecycle creates a dispatcher over modules.
func NewLifecycle(modules ModuleSource, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{modules: modules, logger: logger}
}

// dispatch calls fn for every module implementing H. It stops early when
// fn returns true.
func dispatch[H any](l *Lifecycle, hook string, fn func(name string, h H) bool) {
	for _, rm := range l.modules.All() {
		h, ok := rm.Module.(H)
		if !ok {
			continue
		}
		if l.call(rm.Name, hook, func() bool { return fn(rm.Name, h) }) {
			return
		}
	}
}

func (l *Lifecycle) call(module, hook string, fn func() bool) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str("module", module).
				Str("hook", hook).
				Str("panic", fmt.Sprint(r)).
				Msg("lifecycle hook panicked")
			stop = false
		}
	}()
	return fn()
}

func (l *Lifecycle) Pause() {
	dispatch(l, "pause", func(_ string, h plugin.Pauser) bool { h.OnPause(); return false })
}

func (l *Lifecycle) Resume() {
	dispatch(l, "resume", func(_ string, h plugin.Resumer) bool { h.OnResume(); return false })
}

func (l *Lifecycle) Destroy() {
	dispatch(l, "destroy", func(_ string, h plugin.Destroyer) bool { h.OnDestroy(); return false })
}

func (l *Lifecycle) SetupCompleted() {
	dispatch(l, "setup_completed", func(_ string, h plugin.SetupCompleter) bool { h.OnSetupCompleted(); return false })
}

func (l *Lifecycle) MainLoopStarted() {
	dispatch(l, "main_loop_started", func(_ string, h plugin.MainLoopStarter) bool { h.OnMainLoopStarted(); return false })
}

func (l *Lifecycle) ActivityResult(r plugin.ActivityResult) {
	dispatch(l, "activity_result", func(_ string, h plugin.ActivityResultHandler) bool {
		h.OnActivityResult(r)
		return false
	})
}

func (l *Lifecycle) PermissionResult(r plugin.PermissionResult) {
	dispatch(l, "permission_result", func(_ string, h plugin.PermissionResultHandler) bool {
		h.OnPermissionResult(r)
		return false
	})
}

func (l *Lifecycle) SurfaceCreated(s plugin.Surface) {
	dispatch(l, "surface_created", func(_ string, h plugin.SurfaceCreator) bool { h.OnSurfaceCreated(s); return false })
}

func (l *Lifecycle) SurfaceChanged(s plugin.Surface, width, height int) {
	dispatch(l, "surface_changed", func(_ string, h plugin.SurfaceChanger) bool {
		h.OnSurfaceChanged(s, width, height)
		return false
	})
}

func (l *Lifecycle) DrawFrame(s plugin.Surface) {
	dispatch(l, "draw_frame", func(_ string, h plugin.FrameDrawer) bool { h.OnDrawFrame(s); return false })
}

// Back offers the back navigation to modules until one consumes it and
// reports whether any did.
func (l *Lifecycle) Back() bool {
	consumed := false
	dispatch(l, "back_pressed", func(_ string, h plugin.BackHandler) bool {
		consumed = h.OnBackPressed()
		return consumed
	})
	return consumed
}

// MainCreate collects the views modules return when the main window is
// created. Modules returning nil are skipped. A module without
// ViewPlacer is placed below the render surface.
func (l *Lifecycle) MainCreate() []PlacedView {
	var views []PlacedView
	dispatch(l, "main_create", func(name string, h plugin.MainCreator) bool {
		v := h.OnMainCreate()
		if v == nil {
			return false
		}
		pv := PlacedView{Module: name, View: v}
		if p, ok := h.(plugin.ViewPlacer); ok {
			pv.OnTop = p.ShouldBeOnTop()
		}
		views = append(views, pv)
		return false
	})
	return views
}
