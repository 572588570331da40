// Package graph renders the pipeline topology declared by a manifest.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/couplet-run/couplet/pkg/channel"
	"github.com/couplet-run/couplet/pkg/manifest"
)

const (
	kindModel = "model"
	kindFile  = "file"
)

// Build constructs the directed pipeline graph: models and files as
// vertices, channels as edges labelled with their transport argument.
// Cycles are legal; coupled models routinely exchange messages in both
// directions.
func Build(m *manifest.Manifest) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed())

	for _, model := range m.Models {
		if err := g.AddVertex(model.Name, graph.VertexAttribute("kind", kindModel)); err != nil {
			return nil, fmt.Errorf("graph vertex %q: %w", model.Name, err)
		}
	}

	producers := make(map[string][]string)
	consumers := make(map[string][]string)
	for _, model := range m.Models {
		for _, decl := range model.Channels() {
			if decl.Channel.InTemp {
				continue
			}
			if decl.Direction == channel.Output {
				producers[decl.Channel.Args] = append(producers[decl.Channel.Args], model.Name)
			} else {
				consumers[decl.Channel.Args] = append(consumers[decl.Channel.Args], model.Name)
			}
		}
	}

	addFile := func(path string) error {
		err := g.AddVertex("file:"+path, graph.VertexAttribute("kind", kindFile))
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return err
		}
		return nil
	}
	addEdge := func(from, to, label string) error {
		err := g.AddEdge(from, to, graph.EdgeAttribute("label", label))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return err
		}
		return nil
	}

	for target, outs := range producers {
		if len(consumers[target]) > 0 {
			for _, producer := range outs {
				for _, consumer := range consumers[target] {
					if err := addEdge(producer, consumer, target); err != nil {
						return nil, err
					}
				}
			}
			continue
		}
		for _, producer := range outs {
			if err := addFile(target); err != nil {
				return nil, err
			}
			if err := addEdge(producer, "file:"+target, target); err != nil {
				return nil, err
			}
		}
	}
	for target, ins := range consumers {
		if len(producers[target]) > 0 {
			continue
		}
		for _, consumer := range ins {
			if err := addFile(target); err != nil {
				return nil, err
			}
			if err := addEdge("file:"+target, consumer, target); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// Mermaid produces a Mermaid flowchart of the pipeline.
// Models render as rectangles, files as parallelograms; file edges are
// dotted to distinguish them from live queues.
func Mermaid(m *manifest.Manifest) (string, error) {
	g, err := Build(m)
	if err != nil {
		return "", err
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return "", fmt.Errorf("graph adjacency: %w", err)
	}

	ids := make([]string, 0, len(adjacency))
	for id := range adjacency {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range ids {
		_, props, err := g.VertexWithProperties(id)
		if err != nil {
			return "", err
		}
		opener, closer := "[", "]"
		if props.Attributes["kind"] == kindFile {
			opener, closer = "[/", "/]"
		}
		label := strings.TrimPrefix(id, "file:")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(id), opener, label, closer))
	}

	for _, from := range ids {
		targets := make([]string, 0, len(adjacency[from]))
		for to := range adjacency[from] {
			targets = append(targets, to)
		}
		sort.Strings(targets)

		for _, to := range targets {
			edge := adjacency[from][to]
			fileEdge := strings.HasPrefix(from, "file:") || strings.HasPrefix(to, "file:")
			arrow := "-->"
			if fileEdge {
				arrow = "-.->"
			}
			if label := edge.Properties.Attributes["label"]; label != "" {
				if fileEdge {
					arrow = fmt.Sprintf("-. \"%s\" .->", label)
				} else {
					arrow = fmt.Sprintf("-- \"%s\" -->", label)
				}
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(from), arrow, sanitizeMermaidID(to)))
		}
	}

	return sb.String(), nil
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
