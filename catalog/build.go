package catalog

import (
	"fmt"

	"github.com/kbukum/chainkit/chain"
	"github.com/kbukum/chainkit/errors"
)

// Build resolves a Definition against reg into stage descriptors accepted by
// chain.New, chain.AsArray and chain.Fun.
func Build(reg *Registry, def *Definition) ([]any, error) {
	if def == nil {
		return nil, errors.Usage("pipeline definition is nil")
	}
	return buildRefs(reg, def.Stages, "stage")
}

func buildRefs(reg *Registry, refs []StageRef, path string) ([]any, error) {
	descs := make([]any, 0, len(refs))
	for i, ref := range refs {
		at := fmt.Sprintf("%s %d", path, i)
		if ref.IsList() {
			elems, err := buildRefs(reg, ref.List, at+" list")
			if err != nil {
				return nil, err
			}
			desc := any(elems)
			if ref.Flushable {
				desc = chain.Flushable(desc)
			}
			descs = append(descs, desc)
			continue
		}
		if ref.Name == "" {
			return nil, errors.Usage("%s: name required", at)
		}
		desc, ok := reg.Get(ref.Name)
		if !ok {
			return nil, errors.Usage("%s: %q not in registry", at, ref.Name).
				WithCause(errors.NotFound("stage", ref.Name))
		}
		if ref.Flushable {
			desc = chain.Flushable(desc)
		}
		descs = append(descs, chain.Named(ref.Name, desc))
	}
	return descs, nil
}

// BuildPipe builds a chain.Pipe named after the definition.
func BuildPipe(reg *Registry, def *Definition, collect chain.Collector, opts ...chain.Option) (*chain.Pipe, error) {
	descs, err := Build(reg, def)
	if err != nil {
		return nil, err
	}
	descs = append(descs, chain.WithName(def.Name))
	for _, opt := range opts {
		descs = append(descs, opt)
	}
	return chain.New(collect, descs...)
}

// BuildStage builds the definition as a single stage, for use with
// stream.New or nesting in another pipeline.
func BuildStage(reg *Registry, def *Definition, opts ...chain.Option) (chain.Stage, error) {
	descs, err := Build(reg, def)
	if err != nil {
		return chain.Stage{}, err
	}
	descs = append(descs, chain.WithName(def.Name))
	for _, opt := range opts {
		descs = append(descs, opt)
	}
	return chain.Fun(descs...)
}
