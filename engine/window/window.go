// Package window provides the presentation surface a render pipeline draws
// to. It wraps a GLFW window and hands the device layer a platform-specific
// wgpu surface descriptor through the wgpuglfw bridge.
package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a presentation surface with a frame loop.
type Window interface {
	// SetRedrawCallback sets the function called once per frame loop
	// iteration, typically to record and present one frame.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetRedrawCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is
	// resized, so the surface can be reconfigured at the new pixel size.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for creating a
	// WebGPU surface over this window, or nil before the window exists.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: true until the window is closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the window was never created
	Close() error

	// RunFrameLoop polls events and invokes the redraw callback until the
	// window closes. Blocks the calling goroutine.
	RunFrameLoop()

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// surfaceWindow is the implementation of the Window interface.
type surfaceWindow struct {
	title  string
	width  int
	height int

	glfw *glfwSurface

	onRedraw func()
	onResize func(width, height int)
}

var _ Window = &surfaceWindow{}

// NewWindow creates and opens a window. Applies default values first, then
// each option in order. Panics if the platform window cannot be created.
//
// Parameters:
//   - options: a variadic list of WindowBuilderOption functions to configure the window
//
// Returns:
//   - Window: the opened window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &surfaceWindow{
		title:  "loom",
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := openGlfwSurface(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *surfaceWindow) SetRedrawCallback(callback func()) {
	w.onRedraw = callback
}

func (w *surfaceWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *surfaceWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.glfw == nil {
		return nil
	}
	return w.glfw.surfaceDescriptor()
}

func (w *surfaceWindow) IsRunning() bool {
	return w.glfw != nil && w.glfw.isRunning()
}

func (w *surfaceWindow) Close() error {
	if w.glfw == nil {
		return fmt.Errorf("window is not initialized")
	}
	return w.glfw.close()
}

func (w *surfaceWindow) RunFrameLoop() {
	for w.IsRunning() {
		w.glfw.poll()

		if w.onRedraw != nil {
			w.onRedraw()
		}

		runtime.Gosched()
	}
}

func (w *surfaceWindow) Width() int {
	return w.width
}

func (w *surfaceWindow) Height() int {
	return w.height
}
