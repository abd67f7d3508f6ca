package entity

import (
	"fmt"
	"sort"
	"strings"
)

// CycleDiagnostic describes one reference cycle between entities. Cycles are
// valid topology; the diagnostic is informational and never fatal.
type CycleDiagnostic struct {
	Entities []string
	Message  string
}

// DetectCycles inspects the ref() edges between the given entities and
// returns one diagnostic per cycle. References to entities outside the set
// are ignored; they cannot close a cycle that is visible here.
func DetectCycles(entities []*Entity) []CycleDiagnostic {
	inSet := make(map[string]bool, len(entities))
	for _, e := range entities {
		inSet[e.Name] = true
	}

	edges := make(map[string][]string, len(entities))
	for _, e := range entities {
		for _, target := range e.RefTargets() {
			if inSet[target] {
				edges[e.Name] = append(edges[e.Name], target)
			}
		}
	}

	// Tarjan strongly connected components; an SCC of size > 1, or a
	// self-referencing node, is a cycle.
	var (
		index    = 0
		indices  = make(map[string]int)
		lowlinks = make(map[string]int)
		onStack  = make(map[string]bool)
		stack    []string
		sccs     [][]string
	)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, seen := indices[name]; !seen {
			strongconnect(name)
		}
	}

	var diags []CycleDiagnostic
	for _, scc := range sccs {
		if len(scc) == 1 && !selfLoop(edges, scc[0]) {
			continue
		}
		sort.Strings(scc)
		path := append(append([]string(nil), scc...), scc[0])
		diags = append(diags, CycleDiagnostic{
			Entities: scc,
			Message: fmt.Sprintf("%d entities form a reference cycle: %s",
				len(scc), strings.Join(path, "→")),
		})
	}
	return diags
}

func selfLoop(edges map[string][]string, name string) bool {
	for _, t := range edges[name] {
		if t == name {
			return true
		}
	}
	return false
}
