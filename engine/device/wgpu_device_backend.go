package device

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuDevice is the Device implementation backed by cogentcore/webgpu.
type wgpuDevice struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surface       *wgpu.Surface
	surfaceFormat wgpu.TextureFormat
}

var _ Device = &wgpuDevice{}

// NewHeadless creates a wgpu device with no presentation surface, suitable
// for compute work. Panics if no adapter or device can be acquired, which
// means the host has no usable GPU backend.
//
// Parameters:
//   - forceFallbackAdapter: request the software fallback adapter
//
// Returns:
//   - Device: the device
func NewHeadless(forceFallbackAdapter bool) Device {
	runtime.LockOSThread()
	d := &wgpuDevice{
		instance:      wgpu.CreateInstance(nil),
		surfaceFormat: wgpu.TextureFormatBGRA8Unorm,
	}
	d.init(&wgpu.RequestAdapterOptions{ForceFallbackAdapter: forceFallbackAdapter})
	return d
}

// NewWithSurface creates a wgpu device presenting to the given surface,
// configured at the given size. Panics if no adapter or device can be
// acquired.
//
// Parameters:
//   - surfaceDescriptor: the native surface descriptor (from the window layer)
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - Device: the device
func NewWithSurface(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) Device {
	runtime.LockOSThread()
	d := &wgpuDevice{instance: wgpu.CreateInstance(nil)}
	d.surface = d.instance.CreateSurface(surfaceDescriptor)
	d.init(&wgpu.RequestAdapterOptions{CompatibleSurface: d.surface})

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return d
}

func (d *wgpuDevice) init(opts *wgpu.RequestAdapterOptions) {
	adapter, err := d.instance.RequestAdapter(opts)
	if err != nil {
		panic(err)
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Loom Device",
	})
	if err != nil {
		panic(err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
}

func (d *wgpuDevice) CreateShaderModule(label, source string) (ShaderModule, error) {
	return d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
}

func (d *wgpuDevice) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error) {
	return d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
}

func (d *wgpuDevice) CreatePipelineLayout(label string, layouts []BindGroupLayout) (PipelineLayout, error) {
	native := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		bgl, ok := l.(*wgpu.BindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("device: bind group layout %d is not a wgpu handle", i)
		}
		native[i] = bgl
	}
	return d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: native,
	})
}

func (d *wgpuDevice) CreateComputePipeline(label string, layout PipelineLayout, module ShaderModule, entryPoint string) (ComputePipeline, error) {
	nativeLayout, ok := layout.(*wgpu.PipelineLayout)
	if !ok {
		return nil, errors.New("device: pipeline layout is not a wgpu handle")
	}
	nativeModule, ok := module.(*wgpu.ShaderModule)
	if !ok {
		return nil, errors.New("device: shader module is not a wgpu handle")
	}
	return d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: nativeLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     nativeModule,
			EntryPoint: entryPoint,
		},
	})
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	nativeLayout, ok := desc.Layout.(*wgpu.PipelineLayout)
	if !ok {
		return nil, errors.New("device: pipeline layout is not a wgpu handle")
	}
	vs, ok := desc.VertexModule.(*wgpu.ShaderModule)
	if !ok {
		return nil, errors.New("device: vertex shader module is not a wgpu handle")
	}
	fs, ok := desc.FragmentModule.(*wgpu.ShaderModule)
	if !ok {
		return nil, errors.New("device: fragment shader module is not a wgpu handle")
	}

	target := wgpu.ColorTargetState{
		Format:    desc.TargetFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
		Blend:     desc.BlendState,
	}

	return d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: nativeLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
}

func (d *wgpuDevice) CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error) {
	nativeLayout, ok := layout.(*wgpu.BindGroupLayout)
	if !ok {
		return nil, errors.New("device: bind group layout is not a wgpu handle")
	}
	nativeEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		buf, ok := e.Buffer.(*wgpu.Buffer)
		if !ok {
			return nil, fmt.Errorf("device: bind group entry %d buffer is not a wgpu handle", i)
		}
		nativeEntries[i] = wgpu.BindGroupEntry{
			Binding: e.Binding,
			Buffer:  buf,
			Size:    e.Size,
		}
	}
	return d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  nativeLayout,
		Entries: nativeEntries,
	})
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (Buffer, error) {
	return d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
}

func (d *wgpuDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	native, ok := buf.(*wgpu.Buffer)
	if !ok {
		return errors.New("device: buffer is not a wgpu handle")
	}
	d.queue.WriteBuffer(native, offset, data)
	return nil
}

func (d *wgpuDevice) BeginComputePass(label string) (ComputePass, error) {
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	return &wgpuComputePass{queue: d.queue, encoder: encoder, pass: pass}, nil
}

func (d *wgpuDevice) BeginRenderPass(label string) (RenderPass, error) {
	if d.surface == nil {
		return nil, errors.New("device: render pass requires a surface-backed device")
	}
	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	return &wgpuRenderPass{
		queue:   d.queue,
		encoder: encoder,
		pass:    pass,
		view:    view,
		surface: surfaceTexture,
	}, nil
}

func (d *wgpuDevice) SurfaceFormat() wgpu.TextureFormat { return d.surfaceFormat }

func (d *wgpuDevice) Present() {
	if d.surface != nil {
		d.surface.Present()
	}
}

func (d *wgpuDevice) Release() {
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

// wgpuComputePass records a compute pass on its own command encoder and
// submits on End.
type wgpuComputePass struct {
	queue   *wgpu.Queue
	encoder *wgpu.CommandEncoder
	pass    *wgpu.ComputePassEncoder
}

var _ ComputePass = &wgpuComputePass{}

func (p *wgpuComputePass) SetPipeline(pl ComputePipeline) {
	if native, ok := pl.(*wgpu.ComputePipeline); ok {
		p.pass.SetPipeline(native)
	}
}

func (p *wgpuComputePass) SetBindGroup(index uint32, group BindGroup) {
	if native, ok := group.(*wgpu.BindGroup); ok {
		p.pass.SetBindGroup(index, native, nil)
	}
}

func (p *wgpuComputePass) Dispatch(x, y, z uint32) {
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *wgpuComputePass) End() error {
	p.pass.End()
	commandBuffer, err := p.encoder.Finish(nil)
	if err != nil {
		p.encoder.Release()
		return err
	}
	p.queue.Submit(commandBuffer)
	commandBuffer.Release()
	p.encoder.Release()
	return nil
}

// wgpuRenderPass records a render pass against the acquired surface texture
// and submits on End. The surface texture is released on End; Present must
// be called on the device afterwards.
type wgpuRenderPass struct {
	queue   *wgpu.Queue
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
	view    *wgpu.TextureView
	surface *wgpu.Texture
}

var _ RenderPass = &wgpuRenderPass{}

func (p *wgpuRenderPass) SetPipeline(pl RenderPipeline) {
	if native, ok := pl.(*wgpu.RenderPipeline); ok {
		p.pass.SetPipeline(native)
	}
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup) {
	if native, ok := group.(*wgpu.BindGroup); ok {
		p.pass.SetBindGroup(index, native, nil)
	}
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	if native, ok := buf.(*wgpu.Buffer); ok {
		p.pass.SetVertexBuffer(slot, native, 0, wgpu.WholeSize)
	}
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *wgpuRenderPass) End() error {
	p.pass.End()
	commandBuffer, err := p.encoder.Finish(nil)
	if err == nil {
		p.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	p.encoder.Release()
	p.view.Release()
	p.surface.Release()
	return err
}
