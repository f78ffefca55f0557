// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes defines the interface implemented by module transformation passes
// and Pipeline, which runs a sequence of them.
//
// A pass receives a mutable *hlo.Module and reports whether it changed it. Passes
// run synchronously, one at a time: the module is exclusively owned by the running
// pass for the duration of its Run. Ordering requirements between passes are the
// responsibility of whoever assembles the Pipeline.
package passes

import (
	"github.com/gomlx/hlo/hlo"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ModulePass transforms one module at a time.
type ModulePass interface {
	// Name identifies the pass in logs and error messages.
	Name() string

	// Run applies the pass to the module and returns whether it changed it. On
	// error the module may have been left partially transformed, unless the pass
	// documents otherwise; callers should treat it as unusable.
	Run(module *hlo.Module) (changed bool, err error)
}

// Pipeline runs a fixed sequence of passes. It implements ModulePass itself, so
// pipelines can nest.
type Pipeline struct {
	name   string
	passes []ModulePass
}

// NewPipeline creates a pipeline that runs the given passes in order.
func NewPipeline(name string, passes ...ModulePass) *Pipeline {
	return &Pipeline{name: name, passes: passes}
}

// Add appends a pass to the pipeline. It returns the pipeline, so calls can be
// chained.
func (p *Pipeline) Add(pass ModulePass) *Pipeline {
	p.passes = append(p.passes, pass)
	return p
}

// Name implements ModulePass.
func (p *Pipeline) Name() string { return p.name }

// Run applies every pass in order, stopping at the first failure. It returns
// whether any pass changed the module.
func (p *Pipeline) Run(module *hlo.Module) (bool, error) {
	changed := false
	for _, pass := range p.passes {
		passChanged, err := pass.Run(module)
		changed = changed || passChanged
		if err != nil {
			return changed, errors.WithMessagef(err, "pipeline %q: pass %q failed on module %q",
				p.name, pass.Name(), module.Name())
		}
		klog.V(1).Infof("pipeline %q: pass %q on module %q: changed=%v",
			p.name, pass.Name(), module.Name(), passChanged)
	}
	return changed, nil
}
