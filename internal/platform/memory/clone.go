package memory

import (
	"github.com/phrazzld/imagegen-api/internal/domain"
)

func cloneParameter(p *domain.Parameter) *domain.Parameter {
	c := *p
	c.Values = append([]string{}, p.Values...)
	return &c
}

func cloneTemplate(t *domain.Template) *domain.Template {
	c := *t
	return &c
}

func cloneTask(t *domain.GenerationTask) *domain.GenerationTask {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func cloneGeneration(g *domain.Generation) *domain.Generation {
	c := *g
	c.Variants = make([]domain.Variant, len(g.Variants))
	for i, v := range g.Variants {
		params := make(map[string]string, len(v.Parameters))
		for k, val := range v.Parameters {
			params[k] = val
		}
		v.Parameters = params
		c.Variants[i] = v
	}
	c.Tasks = make([]*domain.GenerationTask, len(g.Tasks))
	for i, t := range g.Tasks {
		c.Tasks[i] = cloneTask(t)
	}
	return &c
}
