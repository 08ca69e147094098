// Package device defines the GPU device collaborator the pipeline layer
// compiles against, plus a wgpu-backed implementation. The engine never
// inspects GPU state directly; it only shapes and sequences the calls this
// interface exposes, which keeps the pipeline layer testable against stub
// devices.
package device

import "github.com/cogentcore/webgpu/wgpu"

// ShaderModule is a compiled shader module handle.
type ShaderModule interface{ Release() }

// BindGroupLayout is a native bind group layout handle.
type BindGroupLayout interface{ Release() }

// PipelineLayout is a native pipeline layout handle.
type PipelineLayout interface{ Release() }

// ComputePipeline is a native compute pipeline handle.
type ComputePipeline interface{ Release() }

// RenderPipeline is a native render pipeline handle.
type RenderPipeline interface{ Release() }

// BindGroup is a native bind group handle.
type BindGroup interface{ Release() }

// Buffer is a native GPU buffer handle.
type Buffer interface{ Release() }

// BindGroupEntry assigns a buffer to one binding slot of a bind group.
type BindGroupEntry struct {
	// Binding is the binding index within the group.
	Binding uint32

	// Buffer is the bound buffer handle.
	Buffer Buffer

	// Size is the bound byte range, starting at offset 0.
	Size uint64
}

// RenderPipelineDescriptor carries everything needed to create a render
// pipeline.
type RenderPipelineDescriptor struct {
	Label              string
	Layout             PipelineLayout
	VertexModule       ShaderModule
	VertexEntryPoint   string
	FragmentModule     ShaderModule
	FragmentEntryPoint string
	VertexBuffers      []wgpu.VertexBufferLayout
	Topology           wgpu.PrimitiveTopology
	CullMode           wgpu.CullMode
	FrontFace          wgpu.FrontFace
	BlendState         *wgpu.BlendState
	TargetFormat       wgpu.TextureFormat
}

// ComputePass records one compute pass. End must be called exactly once to
// submit the recorded commands.
type ComputePass interface {
	// SetPipeline binds the compute pipeline for subsequent dispatches.
	SetPipeline(p ComputePipeline)

	// SetBindGroup binds a bind group at the given group index.
	SetBindGroup(index uint32, group BindGroup)

	// Dispatch issues a workgroup dispatch with the given counts.
	Dispatch(x, y, z uint32)

	// End finishes the pass and submits it to the queue.
	//
	// Returns:
	//   - error: an error if command encoding fails
	End() error
}

// RenderPass records one render pass targeting the device's surface.
type RenderPass interface {
	// SetPipeline binds the render pipeline for subsequent draws.
	SetPipeline(p RenderPipeline)

	// SetBindGroup binds a bind group at the given group index.
	SetBindGroup(index uint32, group BindGroup)

	// SetVertexBuffer binds a vertex buffer at the given slot.
	SetVertexBuffer(slot uint32, buf Buffer)

	// Draw issues a non-indexed draw call.
	Draw(vertexCount, instanceCount uint32)

	// End finishes the pass and submits it to the queue.
	//
	// Returns:
	//   - error: an error if command encoding fails
	End() error
}

// Device is the GPU device collaborator. It creates the native objects a
// compiled pipeline consists of and records dispatch and draw passes.
type Device interface {
	// CreateShaderModule compiles WGSL source into a shader module.
	//
	// Parameters:
	//   - label: the module's debug label
	//   - source: the WGSL source text
	//
	// Returns:
	//   - ShaderModule: the module handle
	//   - error: an error if compilation fails
	CreateShaderModule(label, source string) (ShaderModule, error)

	// CreateBindGroupLayout creates a bind group layout from ordered entry
	// descriptors.
	//
	// Parameters:
	//   - label: the layout's debug label
	//   - entries: the layout entries, one per binding
	//
	// Returns:
	//   - BindGroupLayout: the layout handle
	//   - error: an error if creation fails
	CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error)

	// CreatePipelineLayout creates a pipeline layout from ordered bind
	// group layout handles, group index 0 first.
	//
	// Parameters:
	//   - label: the layout's debug label
	//   - layouts: the bind group layout handles in group order
	//
	// Returns:
	//   - PipelineLayout: the pipeline layout handle
	//   - error: an error if creation fails
	CreatePipelineLayout(label string, layouts []BindGroupLayout) (PipelineLayout, error)

	// CreateComputePipeline creates a compute pipeline.
	//
	// Parameters:
	//   - label: the pipeline's debug label
	//   - layout: the pipeline layout handle
	//   - module: the shader module holding the entry point
	//   - entryPoint: the compute entry point function name
	//
	// Returns:
	//   - ComputePipeline: the pipeline handle
	//   - error: an error if creation fails
	CreateComputePipeline(label string, layout PipelineLayout, module ShaderModule, entryPoint string) (ComputePipeline, error)

	// CreateRenderPipeline creates a render pipeline.
	//
	// Parameters:
	//   - desc: the pipeline configuration
	//
	// Returns:
	//   - RenderPipeline: the pipeline handle
	//   - error: an error if creation fails
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateBindGroup populates a bind group from a layout and buffer
	// entries.
	//
	// Parameters:
	//   - label: the group's debug label
	//   - layout: the layout the group instantiates
	//   - entries: the buffer assignments, one per binding
	//
	// Returns:
	//   - BindGroup: the group handle
	//   - error: an error if creation fails
	CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error)

	// CreateBuffer allocates a GPU buffer.
	//
	// Parameters:
	//   - label: the buffer's debug label
	//   - size: the byte size
	//   - usage: the buffer usage flags
	//
	// Returns:
	//   - Buffer: the buffer handle
	//   - error: an error if allocation fails
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (Buffer, error)

	// WriteBuffer stages data into a buffer through the queue.
	//
	// Parameters:
	//   - buf: the target buffer
	//   - offset: the byte offset to write at
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the handle is foreign to this device
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// BeginComputePass starts recording a compute pass.
	//
	// Parameters:
	//   - label: the pass debug label
	//
	// Returns:
	//   - ComputePass: the pass recorder
	//   - error: an error if the command encoder cannot be created
	BeginComputePass(label string) (ComputePass, error)

	// BeginRenderPass starts recording a render pass against the device's
	// current surface texture. Fails on a device without a surface.
	//
	// Parameters:
	//   - label: the pass debug label
	//
	// Returns:
	//   - RenderPass: the pass recorder
	//   - error: an error if no surface is configured or acquisition fails
	BeginRenderPass(label string) (RenderPass, error)

	// SurfaceFormat returns the configured surface texture format, or the
	// device's preferred default when headless.
	//
	// Returns:
	//   - wgpu.TextureFormat: the color target format
	SurfaceFormat() wgpu.TextureFormat

	// Present presents the most recently rendered surface texture. No-op
	// on a headless device.
	Present()

	// Release frees the device and its queue.
	Release()
}
