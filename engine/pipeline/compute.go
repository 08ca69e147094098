// Package pipeline implements compute and render pipelines over the
// resolution engine. A pipeline core owns one lazily computed memo: the
// resolved shader source, the native pipeline objects, and the catch-all
// bind group metadata. Resolution and compilation run exactly once per
// core; the exported pipeline values are immutable wrappers that layer
// explicit bind group assignments on top of the shared core.
package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/loom-go/engine/bind_group"
	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/fragment"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/cogentcore/webgpu/wgpu"
)

// MissingBindGroupError reports a dispatch or draw attempted while an
// explicit layout in the pipeline's memo has no bind group among the
// wrapper's priors. The underlying core is unaffected; a corrected wrapper
// may retry.
type MissingBindGroupError struct {
	// Layout is the unsatisfied layout's label.
	Layout string
}

func (e *MissingBindGroupError) Error() string {
	return fmt.Sprintf("pipeline: no bind group supplied for layout %q", e.Layout)
}

// computeMemo is the one-time artifact of a compute core's resolution and
// compilation pass.
type computeMemo struct {
	source        string
	entryPoint    string
	module        device.ShaderModule
	layouts       []resolver.BindGroupLayout
	layoutHandles []device.BindGroupLayout
	layoutHandle  device.PipelineLayout
	pipeline      device.ComputePipeline
	catchAll      *resolver.CatchAllGroup
	catchAllGroup device.BindGroup
}

// computeCore owns the memo. It is shared by every wrapper layered from the
// same pipeline and is never recomputed after the first successful unwrap.
type computeCore struct {
	label   string
	dev     device.Device
	entry   fragment.Fn
	slots   []resolver.SlotBinding
	layouts []bind_group.Layout

	memo *computeMemo
}

// unwrap resolves and compiles the pipeline on first call. A failed unwrap
// leaves the core unresolved so a later call may retry; a successful memo
// is never invalidated.
func (c *computeCore) unwrap() (*computeMemo, error) {
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

	wg := c.entry.WorkgroupSize()
	attrs := fmt.Sprintf("@compute @workgroup_size(%d, %d, %d)", wg[0], wg[1], wg[2])
	entryPoint, err := c.entry.ResolveEntry(ctx, attrs)
	if err != nil {
		return nil, err
	}
	result := ctx.Result()

	memo := &computeMemo{
		source:     result.Source,
		entryPoint: entryPoint,
		layouts:    result.Layouts,
		catchAll:   result.CatchAll,
	}
	if err := c.compile(memo); err != nil {
		return nil, err
	}
	c.memo = memo
	return memo, nil
}

func (c *computeCore) compile(memo *computeMemo) error {
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
	memo.pipeline, err = c.dev.CreateComputePipeline(c.label, memo.layoutHandle, memo.module, memo.entryPoint)
	if err != nil {
		return fmt.Errorf("pipeline: creating compute pipeline %q: %w", c.label, err)
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

// ComputePipeline is an immutable compute pipeline wrapper. With layers an
// explicit bind group onto a new wrapper; Dispatch records and submits one
// compute pass.
type ComputePipeline interface {
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
	// additional layout to bind group assignment. The receiver is not
	// modified and no resolution is triggered.
	//
	// Parameters:
	//   - layout: the explicit layout being satisfied
	//   - group: the bind group to bind for it
	//
	// Returns:
	//   - ComputePipeline: the extended wrapper
	With(layout bind_group.Layout, group bind_group.Group) ComputePipeline

	// Dispatch resolves and compiles the pipeline if needed, then records
	// and submits one compute pass with the given workgroup counts. Every
	// explicit layout must have a bind group among the wrapper's priors;
	// the catch-all group binds automatically.
	//
	// Parameters:
	//   - x: the workgroup count along x
	//   - y: the workgroup count along y
	//   - z: the workgroup count along z
	//
	// Returns:
	//   - error: a MissingBindGroupError if a layout is unsatisfied, or an
	//     error from resolution, compilation, or pass recording
	Dispatch(x, y, z uint32) error

	// Release frees the native objects held by the pipeline's memo. The
	// memo belongs to the core shared by every wrapper layered from this
	// pipeline, so Release ends the compiled lifetime for all of them; a
	// later Dispatch or Source on any wrapper resolves and compiles a
	// fresh memo.
	Release()
}

// computePipeline is the implementation of the ComputePipeline interface.
type computePipeline struct {
	core   *computeCore
	priors map[resolver.BindGroupLayout]bind_group.Group
}

var _ ComputePipeline = &computePipeline{}

func (p *computePipeline) Label() string { return p.core.label }

func (p *computePipeline) Source() (string, error) {
	memo, err := p.core.unwrap()
	if err != nil {
		return "", err
	}
	return memo.source, nil
}

func (p *computePipeline) With(layout bind_group.Layout, group bind_group.Group) ComputePipeline {
	return &computePipeline{
		core:   p.core,
		priors: extendPriors(p.priors, layout, group),
	}
}

func (p *computePipeline) Dispatch(x, y, z uint32) error {
	memo, err := p.core.unwrap()
	if err != nil {
		return err
	}

	// Collect every group handle before recording so a missing bind group
	// fails without leaving a half-recorded pass behind.
	groups, err := collectGroups(p.core.dev, memo.layouts, memo.catchAll, memo.catchAllGroup, p.priors)
	if err != nil {
		return err
	}

	pass, err := p.core.dev.BeginComputePass(p.core.label)
	if err != nil {
		return err
	}
	pass.SetPipeline(memo.pipeline)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g)
	}
	pass.Dispatch(x, y, z)
	return pass.End()
}

func (p *computePipeline) Release() {
	releaseMemoObjects(p.core.memo)
	p.core.memo = nil
}

func releaseMemoObjects(memo *computeMemo) {
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
}

// asResolverLayouts widens explicit layouts to the resolver's interface.
func asResolverLayouts(layouts []bind_group.Layout) []resolver.BindGroupLayout {
	out := make([]resolver.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		out[i] = l
	}
	return out
}

// extendPriors copies priors and adds one assignment, leaving the original
// map untouched.
func extendPriors(priors map[resolver.BindGroupLayout]bind_group.Group, layout bind_group.Layout, group bind_group.Group) map[resolver.BindGroupLayout]bind_group.Group {
	extended := make(map[resolver.BindGroupLayout]bind_group.Group, len(priors)+1)
	for l, g := range priors {
		extended[l] = g
	}
	extended[layout] = group
	return extended
}

// unwrapLayouts produces native layout handles for every layout in memo
// order. Explicit layouts unwrap themselves; the catch-all builds its
// entries from the bindables resolution collected.
func unwrapLayouts(dev device.Device, label string, layouts []resolver.BindGroupLayout) ([]device.BindGroupLayout, error) {
	handles := make([]device.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		switch lt := l.(type) {
		case bind_group.Layout:
			handle, err := lt.Unwrap(dev)
			if err != nil {
				return nil, err
			}
			handles[i] = handle
		case *resolver.CatchAllGroup:
			entries := make([]wgpu.BindGroupLayoutEntry, len(lt.Bindings))
			for j, b := range lt.Bindings {
				entries[j] = bind_group.LayoutEntry(uint32(j), b.Usage(), b.MinBindingSize())
			}
			handle, err := dev.CreateBindGroupLayout(label+" catchall", entries)
			if err != nil {
				return nil, fmt.Errorf("pipeline: creating catch-all layout for %q: %w", label, err)
			}
			handles[i] = handle
		default:
			return nil, fmt.Errorf("pipeline: %q references an unknown layout kind %T", label, l)
		}
	}
	return handles, nil
}

// populateCatchAll builds the auto bind group covering the catch-all's
// bindables, creating each backing buffer as needed.
func populateCatchAll(dev device.Device, label string, catchAll *resolver.CatchAllGroup, layoutHandle device.BindGroupLayout) (device.BindGroup, error) {
	entries := make([]device.BindGroupEntry, len(catchAll.Bindings))
	for i, b := range catchAll.Bindings {
		bound, ok := b.(bind_group.DeviceBindable)
		if !ok {
			return nil, fmt.Errorf("pipeline: catch-all bindable %q has no device buffer", b.Label())
		}
		buf, err := bound.Unwrap(dev)
		if err != nil {
			return nil, err
		}
		entries[i] = device.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  buf,
			Size:    b.MinBindingSize(),
		}
	}
	group, err := dev.CreateBindGroup(label+" catchall", layoutHandle, entries)
	if err != nil {
		return nil, fmt.Errorf("pipeline: populating catch-all group for %q: %w", label, err)
	}
	return group, nil
}

// collectGroups gathers the bind group handle for every layout in memo
// order: the prebuilt catch-all group for the catch-all, and the wrapper's
// prior for each explicit layout.
func collectGroups(dev device.Device, layouts []resolver.BindGroupLayout, catchAll *resolver.CatchAllGroup, catchAllGroup device.BindGroup, priors map[resolver.BindGroupLayout]bind_group.Group) ([]device.BindGroup, error) {
	groups := make([]device.BindGroup, len(layouts))
	for i, l := range layouts {
		if ca, ok := l.(*resolver.CatchAllGroup); ok && ca == catchAll {
			groups[i] = catchAllGroup
			continue
		}
		prior, ok := priors[l]
		if !ok {
			return nil, &MissingBindGroupError{Layout: l.Label()}
		}
		handle, err := prior.Unwrap(dev)
		if err != nil {
			return nil, err
		}
		groups[i] = handle
	}
	return groups, nil
}
