package graph

import (
	"fmt"
	"sort"
)

type Node interface {
	GetName() string
	GetDependencies() []string
}

// TopologicalSort orders nodes so every node follows its dependencies. Independent
// nodes come out in name order, so the result is stable across runs.
func TopologicalSort(nodes map[string]Node) ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	result := make([]string, 0, len(nodes))

	var visit func(string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("cycle detected in dependencies involving %s", name)
		}

		node, exists := nodes[name]
		if !exists {
			return fmt.Errorf("node %s not found", name)
		}

		visiting[name] = true

		deps := append([]string(nil), node.GetDependencies()...)
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[name] = false
		visited[name] = true
		result = append(result, name)
		return nil
	}

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return result, nil
}
