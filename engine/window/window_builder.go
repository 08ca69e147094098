package window

// WindowBuilderOption is a functional option for configuring a surfaceWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *surfaceWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *surfaceWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *surfaceWindow) {
		w.width = width
		w.height = height
	}
}
