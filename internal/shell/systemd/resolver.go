package systemd

import (
	"context"
	"strings"

	"github.com/artpar/quadapp/internal/core/graph"
	"github.com/artpar/quadapp/internal/core/plan"
	"github.com/artpar/quadapp/internal/core/quadlet"
)

// ResolveRestartOrder walks the supervisor's requirement and ordering
// directives from the application's main service, keeps only units carrying
// the application prefix, and returns every discovered service in restart
// order: dependencies first, the main service last. A dependency cycle is a
// graph.DependencyError; nothing should be restarted in that case.
func ResolveRestartOrder(ctx context.Context, c *Client, app string) ([]string, error) {
	prefix := quadlet.ApplyPrefix(app, "")
	main := plan.MainServiceUnit(app)

	g := graph.New()
	g.AddNode(main)

	visited := map[string]bool{main: true}
	queue := []string{main}
	for len(queue) > 0 {
		unit := queue[0]
		queue = queue[1:]

		deps, err := c.UnitDependencies(ctx, unit)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if !strings.HasPrefix(dep, prefix) {
				continue
			}
			g.AddEdge(unit, dep)
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	return g.RestartOrder()
}
