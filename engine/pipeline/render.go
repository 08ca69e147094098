package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/loom-go/common"
	"github.com/Carmen-Shannon/loom-go/engine/bind_group"
	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/fragment"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderMemo is the one-time artifact of a render core's resolution and
// compilation pass.
type renderMemo struct {
	source        string
	vertexEntry   string
	fragmentEntry string
	module        device.ShaderModule
	layouts       []resolver.BindGroupLayout
	layoutHandles []device.BindGroupLayout
	layoutHandle  device.PipelineLayout
	pipeline      device.RenderPipeline
	catchAll      *resolver.CatchAllGroup
	catchAllGroup device.BindGroup
	vertexBuffers []resolver.BindableResource
}

// renderCore owns the memo for a vertex/fragment pair resolved into a
// single shader module.
type renderCore struct {
	label         string
	dev           device.Device
	vertex        fragment.Fn
	fragment      fragment.Fn
	slots         []resolver.SlotBinding
	layouts       []bind_group.Layout
	vertexBuffers []resolver.BindableResource

	topology     wgpu.PrimitiveTopology
	cullMode     wgpu.CullMode
	frontFace    wgpu.FrontFace
	blendState   *wgpu.BlendState
	targetFormat wgpu.TextureFormat

	memo *renderMemo
}

// vertexLayouter is satisfied by vertex bindables that carry a derived
// vertex buffer layout.
type vertexLayouter interface {
	VertexLayout() wgpu.VertexBufferLayout
}

func (c *renderCore) unwrap() (*renderMemo, error) {
	if c.memo != nil {
		return c.memo, nil
	}

	opts := []resolver.ContextOption{
		resolver.WithBindGroupLayouts(asResolverLayouts(c.layouts)...),
	}
	if len(c.slots) > 0 {
		opts = append(opts, resolver.WithSlotBindings(c.slots...))
	}
	ctx := resolver.NewContext(opts...)
	for _, vb := range c.vertexBuffers {
		ctx.RegisterVertexBuffer(vb)
	}

	vertexEntry, err := c.vertex.ResolveEntry(ctx, "@vertex")
	if err != nil {
		return nil, err
	}
	fragmentEntry, err := c.fragment.ResolveEntry(ctx, "@fragment")
	if err != nil {
		return nil, err
	}
	result := ctx.Result()

	memo := &renderMemo{
		source:        result.Source,
		vertexEntry:   vertexEntry,
		fragmentEntry: fragmentEntry,
		layouts:       result.Layouts,
		catchAll:      result.CatchAll,
		vertexBuffers: result.VertexBuffers,
	}
	if err := c.compile(memo); err != nil {
		return nil, err
	}
	c.memo = memo
	return memo, nil
}

func (c *renderCore) compile(memo *renderMemo) error {
	handles, err := unwrapLayouts(c.dev, c.label, memo.layouts)
	if err != nil {
		return err
	}
	memo.layoutHandles = handles

	memo.layoutHandle, err = c.dev.CreatePipelineLayout(c.label, handles)
	if err != nil {
		return fmt.Errorf("pipeline: creating pipeline layout for %q: %w", c.label, err)
	}
	memo.module, err = c.dev.CreateShaderModule(c.label, memo.source)
	if err != nil {
		return fmt.Errorf("pipeline: compiling shader module for %q: %w", c.label, err)
	}

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(memo.vertexBuffers))
	for _, b := range memo.vertexBuffers {
		vl, ok := b.(vertexLayouter)
		if !ok {
			return fmt.Errorf("pipeline: vertex bindable %q carries no vertex layout", b.Label())
		}
		vertexLayouts = append(vertexLayouts, vl.VertexLayout())
	}

	format := common.Coalesce(c.targetFormat, c.dev.SurfaceFormat())
	memo.pipeline, err = c.dev.CreateRenderPipeline(&device.RenderPipelineDescriptor{
		Label:              c.label,
		Layout:             memo.layoutHandle,
		VertexModule:       memo.module,
		VertexEntryPoint:   memo.vertexEntry,
		FragmentModule:     memo.module,
		FragmentEntryPoint: memo.fragmentEntry,
		VertexBuffers:      vertexLayouts,
		Topology:           c.topology,
		CullMode:           c.cullMode,
		FrontFace:          c.frontFace,
		BlendState:         c.blendState,
		TargetFormat:       format,
	})
	if err != nil {
		return fmt.Errorf("pipeline: creating render pipeline %q: %w", c.label, err)
	}

	if memo.catchAll != nil {
		catchAllIndex := len(memo.layouts) - 1
		memo.catchAllGroup, err = populateCatchAll(c.dev, c.label, memo.catchAll, handles[catchAllIndex])
		if err != nil {
			return err
		}
	}
	return nil
}

// RenderPipeline is an immutable render pipeline wrapper over a shared,
// lazily compiled core.
type RenderPipeline interface {
	// Label returns the pipeline's label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Source resolves the pipeline if needed and returns the WGSL module
	// source it compiled.
	//
	// Returns:
	//   - string: the resolved shader source
	//   - error: an error if resolution or compilation fails
	Source() (string, error)

	// With returns a new wrapper sharing this pipeline's core plus one
	// additional layout to bind group assignment.
	//
	// Parameters:
	//   - layout: the explicit layout being satisfied
	//   - group: the bind group to bind for it
	//
	// Returns:
	//   - RenderPipeline: the extended wrapper
	With(layout bind_group.Layout, group bind_group.Group) RenderPipeline

	// Draw resolves and compiles the pipeline if needed, then records and
	// submits one render pass drawing the given vertex range. Vertex
	// buffers referenced during resolution bind automatically in slot
	// order; explicit layouts must be satisfied by the wrapper's priors.
	//
	// Parameters:
	//   - vertexCount: the number of vertices to draw
	//   - instanceCount: the number of instances to draw
	//
	// Returns:
	//   - error: a MissingBindGroupError if a layout is unsatisfied, or an
	//     error from resolution, compilation, or pass recording
	Draw(vertexCount, instanceCount uint32) error

	// Release frees the native objects held by the pipeline's memo. The
	// memo belongs to the core shared by every wrapper layered from this
	// pipeline, so Release ends the compiled lifetime for all of them; a
	// later Draw or Source on any wrapper resolves and compiles a fresh
	// memo.
	Release()
}

// renderPipeline is the implementation of the RenderPipeline interface.
type renderPipeline struct {
	core   *renderCore
	priors map[resolver.BindGroupLayout]bind_group.Group
}

var _ RenderPipeline = &renderPipeline{}

func (p *renderPipeline) Label() string { return p.core.label }

func (p *renderPipeline) Source() (string, error) {
	memo, err := p.core.unwrap()
	if err != nil {
		return "", err
	}
	return memo.source, nil
}

func (p *renderPipeline) With(layout bind_group.Layout, group bind_group.Group) RenderPipeline {
	return &renderPipeline{
		core:   p.core,
		priors: extendPriors(p.priors, layout, group),
	}
}

func (p *renderPipeline) Draw(vertexCount, instanceCount uint32) error {
	memo, err := p.core.unwrap()
	if err != nil {
		return err
	}

	groups, err := collectGroups(p.core.dev, memo.layouts, memo.catchAll, memo.catchAllGroup, p.priors)
	if err != nil {
		return err
	}
	vertexHandles := make([]device.Buffer, len(memo.vertexBuffers))
	for i, b := range memo.vertexBuffers {
		bound, ok := b.(bind_group.DeviceBindable)
		if !ok {
			return fmt.Errorf("pipeline: vertex bindable %q has no device buffer", b.Label())
		}
		vertexHandles[i], err = bound.Unwrap(p.core.dev)
		if err != nil {
			return err
		}
	}

	pass, err := p.core.dev.BeginRenderPass(p.core.label)
	if err != nil {
		return err
	}
	pass.SetPipeline(memo.pipeline)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g)
	}
	for i, h := range vertexHandles {
		pass.SetVertexBuffer(uint32(i), h)
	}
	pass.Draw(vertexCount, instanceCount)
	return pass.End()
}

func (p *renderPipeline) Release() {
	memo := p.core.memo
	if memo == nil {
		return
	}
	if memo.catchAllGroup != nil {
		memo.catchAllGroup.Release()
	}
	// The catch-all layout handle is owned here; explicit layouts release
	// theirs through bind_group.Layout.Release.
	if memo.catchAll != nil && len(memo.layoutHandles) > 0 {
		memo.layoutHandles[len(memo.layoutHandles)-1].Release()
	}
	if memo.pipeline != nil {
		memo.pipeline.Release()
	}
	if memo.module != nil {
		memo.module.Release()
	}
	if memo.layoutHandle != nil {
		memo.layoutHandle.Release()
	}
	p.core.memo = nil
}
