package plugin

// The interfaces below are optional lifecycle hooks. They are pass-through
// notifications from the host application; the registry and bridge never
// call them except RegisteredNotifier. A module implements only what it needs.

// View is an opaque renderable handle a module contributes to the host view
// hierarchy. The core never inspects it.
type View any

// MainCreator is called when the host main window is created.
// It may return a View, or nil.
type MainCreator interface {
	OnMainCreate() View
}

// ViewPlacer decides whether the module's view is placed above the host
// render surface or below it.
type ViewPlacer interface {
	ShouldBeOnTop() bool
}

// ActivityResult is the outcome of an external activity started by a module.
type ActivityResult struct {
	RequestCode int
	ResultCode  int
	Data        map[string]string
}

type ActivityResultHandler interface {
	OnActivityResult(result ActivityResult)
}

// PermissionResult reports the user's answer to a permission request.
// Granted is parallel to Permissions.
type PermissionResult struct {
	RequestCode int
	Permissions []string
	Granted     []bool
}

type PermissionResultHandler interface {
	OnPermissionResult(result PermissionResult)
}

type Pauser interface {
	OnPause()
}

type Resumer interface {
	OnResume()
}

type Destroyer interface {
	OnDestroy()
}

// BackHandler returns true when it consumed the back navigation.
type BackHandler interface {
	OnBackPressed() bool
}

// SetupCompleter is notified once the host engine finished its setup.
type SetupCompleter interface {
	OnSetupCompleted()
}

// MainLoopStarter is notified when the host main loop starts.
type MainLoopStarter interface {
	OnMainLoopStarted()
}

// SurfaceKind identifies the graphics API behind a render surface.
type SurfaceKind string

const (
	SurfaceGL     SurfaceKind = "gl"
	SurfaceVulkan SurfaceKind = "vulkan"
)

// Surface is a render surface owned by the host. Handle is opaque.
type Surface struct {
	Kind   SurfaceKind
	Handle any
}

// SurfaceCreator runs on the render context.
type SurfaceCreator interface {
	OnSurfaceCreated(s Surface)
}

// SurfaceChanger runs on the render context.
type SurfaceChanger interface {
	OnSurfaceChanged(s Surface, width, height int)
}

// FrameDrawer runs on the frame-draw context once per frame.
type FrameDrawer interface {
	OnDrawFrame(s Surface)
}

// RegisteredNotifier is called by the registry after the module's
// capabilities were handed to the bridge.
type RegisteredNotifier interface {
	OnRegistered()
}
