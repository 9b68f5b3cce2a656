package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/CraigKelly/gnuts/model"
)

// DotOutput reads a given model and outputs a graphviz description: one box
// per latent variable, one ellipse per observation and an edge from each
// latent to the data observed through it.
func DotOutput(sp *startupParams) error {
	mod, _, err := readModel(sp)
	if err != nil {
		return err
	}

	var target *log.Logger
	if len(sp.traceFile) > 0 {
		sp.out.Printf("Writing model to trace file %v\n", sp.traceFile)
		target = sp.trace
	} else {
		target = sp.out
	}

	writeDot(mod, target)
	return nil
}

func writeDot(mod *model.Model, target *log.Logger) {
	// Start graph
	target.Printf("digraph G {\n")

	for _, v := range mod.Vars {
		label := v.ID
		if len(v.Shape) > 0 {
			label += shapeLabel(v.Shape)
		}
		if v.Prior != nil {
			label += "\\n~ " + v.Prior.Dist
		}
		target.Printf("    \"%s\" [shape=box, label=\"%s\"];\n", v.ID, label)
	}

	for _, o := range mod.Observations {
		node := "obs:" + o.Name
		target.Printf("    \"%s\" [shape=ellipse, style=filled, label=\"%s\\n%s\"];\n", node, o.Name, o.Dist)
		target.Printf("    \"%s\" -> \"%s\";\n", o.Of, node)
	}

	// Finish graph
	target.Printf("}\n")
}

func shapeLabel(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
