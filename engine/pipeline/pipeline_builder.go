package pipeline

import (
	"github.com/Carmen-Shannon/loom-go/engine/bind_group"
	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/fragment"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/cogentcore/webgpu/wgpu"
)

// settings holds the shared construction state for compute and render
// pipelines. Render-only fields are ignored by compute pipelines.
type settings struct {
	slots         []resolver.SlotBinding
	layouts       []bind_group.Layout
	vertexBuffers []resolver.BindableResource

	topology     wgpu.PrimitiveTopology
	cullMode     wgpu.CullMode
	frontFace    wgpu.FrontFace
	blendEnabled bool
	blendState   *wgpu.BlendState
	targetFormat wgpu.TextureFormat
}

func defaultSettings() *settings {
	return &settings{
		topology:  wgpu.PrimitiveTopologyTriangleList,
		cullMode:  wgpu.CullModeNone,
		frontFace: wgpu.FrontFaceCCW,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
}

// PipelineBuilderOption is a functional option used to configure a pipeline during construction.
type PipelineBuilderOption func(*settings)

// WithSlotBindings seeds the pipeline's slot environment. The bindings stay
// in effect for the whole resolution pass.
//
// Parameters:
//   - bindings: the slot bindings
//
// Returns:
//   - PipelineBuilderOption: a function that sets the slot bindings
func WithSlotBindings(bindings ...resolver.SlotBinding) PipelineBuilderOption {
	return func(s *settings) {
		s.slots = append(s.slots, bindings...)
	}
}

// WithLayouts supplies explicit bind group layouts in group-index order.
// Bindables not covered by one of these land in the catch-all group.
//
// Parameters:
//   - layouts: the explicit layouts, group index 0 first
//
// Returns:
//   - PipelineBuilderOption: a function that sets the explicit layouts
func WithLayouts(layouts ...bind_group.Layout) PipelineBuilderOption {
	return func(s *settings) {
		s.layouts = append(s.layouts, layouts...)
	}
}

// WithVertexBuffers registers vertex buffer bindables with the render
// pipeline in slot order. Their layouts feed the pipeline's vertex state and
// their buffers bind automatically on Draw; vertex data reaches the shader
// through @location inputs, so the bindables never appear in the WGSL.
//
// Parameters:
//   - bindables: the vertex bindables, slot 0 first
//
// Returns:
//   - PipelineBuilderOption: a function that registers the vertex buffers
func WithVertexBuffers(bindables ...resolver.BindableResource) PipelineBuilderOption {
	return func(s *settings) {
		s.vertexBuffers = append(s.vertexBuffers, bindables...)
	}
}

// WithTopology sets the primitive topology for a render pipeline.
//
// Parameters:
//   - topology: the primitive topology
//
// Returns:
//   - PipelineBuilderOption: a function that sets the topology
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(s *settings) {
		s.topology = topology
	}
}

// WithCullMode sets the face culling mode for a render pipeline.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(s *settings) {
		s.cullMode = mode
	}
}

// WithFrontFace sets the front face winding for a render pipeline.
//
// Parameters:
//   - face: the front face winding order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the front face
func WithFrontFace(face wgpu.FrontFace) PipelineBuilderOption {
	return func(s *settings) {
		s.frontFace = face
	}
}

// WithBlendEnabled toggles alpha blending on the render pipeline's color
// target.
//
// Parameters:
//   - enabled: whether blending is enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(s *settings) {
		s.blendEnabled = enabled
	}
}

// WithBlendState replaces the default blend state used when blending is
// enabled.
//
// Parameters:
//   - state: the blend state
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend state
func WithBlendState(state *wgpu.BlendState) PipelineBuilderOption {
	return func(s *settings) {
		if state != nil {
			s.blendState = state
		}
	}
}

// WithTargetFormat overrides the color target format, which otherwise
// follows the device's surface format.
//
// Parameters:
//   - format: the color target texture format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the target format
func WithTargetFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(s *settings) {
		s.targetFormat = format
	}
}

// NewComputePipeline creates a compute pipeline around an entry fragment.
// Nothing resolves or compiles until the first Dispatch or Source call.
// Panics if the device or entry is nil.
//
// Parameters:
//   - label: the pipeline's name, used in errors and debug labels
//   - dev: the GPU device to compile on
//   - entry: the compute entry fragment
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - ComputePipeline: the constructed pipeline wrapper
func NewComputePipeline(label string, dev device.Device, entry fragment.Fn, opts ...PipelineBuilderOption) ComputePipeline {
	if dev == nil {
		panic("pipeline: NewComputePipeline requires a non-nil device")
	}
	if entry == nil {
		panic("pipeline: NewComputePipeline requires a non-nil entry fragment")
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	return &computePipeline{
		core: &computeCore{
			label:   label,
			dev:     dev,
			entry:   entry,
			slots:   s.slots,
			layouts: s.layouts,
		},
	}
}

// NewRenderPipeline creates a render pipeline around a vertex and fragment
// pair resolved into one shader module. Nothing resolves or compiles until
// the first Draw or Source call. Panics if the device or either fragment is
// nil.
//
// Parameters:
//   - label: the pipeline's name, used in errors and debug labels
//   - dev: the GPU device to compile on
//   - vertex: the vertex entry fragment
//   - frag: the fragment entry fragment
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - RenderPipeline: the constructed pipeline wrapper
func NewRenderPipeline(label string, dev device.Device, vertex, frag fragment.Fn, opts ...PipelineBuilderOption) RenderPipeline {
	if dev == nil {
		panic("pipeline: NewRenderPipeline requires a non-nil device")
	}
	if vertex == nil || frag == nil {
		panic("pipeline: NewRenderPipeline requires both vertex and fragment entries")
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	core := &renderCore{
		label:         label,
		dev:           dev,
		vertex:        vertex,
		fragment:      frag,
		slots:         s.slots,
		layouts:       s.layouts,
		vertexBuffers: s.vertexBuffers,
		topology:      s.topology,
		cullMode:      s.cullMode,
		frontFace:     s.frontFace,
		targetFormat:  s.targetFormat,
	}
	if s.blendEnabled {
		core.blendState = s.blendState
	}
	return &renderPipeline{core: core}
}
