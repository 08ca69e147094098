package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwSurface holds the GLFW-specific window state.
type glfwSurface struct {
	parent  *surfaceWindow
	window  *glfw.Window
	running bool
}

// openGlfwSurface creates the GLFW window and stores it on the parent.
// GLFW requires creation and event polling on one OS thread.
func openGlfwSurface(w *surfaceWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %v", err)
	}

	// WebGPU brings its own graphics API, so no OpenGL context.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %v", err)
	}

	gs := &glfwSurface{
		parent:  w,
		window:  win,
		running: true,
	}
	w.glfw = gs

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gs.running = false
			win.SetShouldClose(true)
		}
	})

	// The framebuffer size callback reports pixel dimensions, which differ
	// from window coordinates on high-DPI displays. Surface configuration
	// needs pixels.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width = width
		w.height = height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width = fbWidth
	w.height = fbHeight

	return nil
}

// surfaceDescriptor builds a platform-appropriate wgpu.SurfaceDescriptor
// from the GLFW window via the wgpuglfw bridge, which has per-platform
// implementations (Windows, X11, Wayland, macOS).
func (gs *glfwSurface) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(gs.window)
}

func (gs *glfwSurface) isRunning() bool {
	return gs.running && !gs.window.ShouldClose()
}

func (gs *glfwSurface) close() error {
	gs.running = false
	gs.window.SetShouldClose(true)
	gs.window.Destroy()
	glfw.Terminate()
	return nil
}

// poll pumps pending GLFW events without blocking.
func (gs *glfwSurface) poll() {
	glfw.PollEvents()
}
