package core

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"
)

// BranchID names one branch row: the table it lives in (acline or
// transformer) and its row identifier.
type BranchID struct {
	Type string
	Name string
}

func (b BranchID) String() string { return b.Type + ":" + b.Name }

// PowerGraph is a bus/branch multigraph built from the branch tables of a
// dataset. Nodes are bus numbers; parallel branches between the same bus
// pair stay distinct lines, so removing one branch never hides a sibling
// circuit. Self-loop rows (ibus == jbus) carry no connectivity information
// and are skipped.
type PowerGraph struct {
	g     *multi.UndirectedGraph
	lines map[BranchID]graph.Line
}

// lineKey identifies one line globally. Line IDs alone are not unique in a
// multigraph: they are allocated per bus pair, so the pair is part of the
// identity.
type lineKey struct {
	u, v, id int64
}

func keyOfLine(l graph.Line) lineKey {
	u, v := l.From().ID(), l.To().ID()
	if u > v {
		u, v = v, u
	}
	return lineKey{u: u, v: v, id: l.ID()}
}

// NewPowerGraph builds the multigraph over every branch row of the acline
// and transformer tables. With onlyInService, rows with mark != 1 are
// skipped. Branch tables absent from the dataset are ignored; present
// tables must carry mark/ibus/jbus.
func NewPowerGraph(ds *Dataset, onlyInService bool) (*PowerGraph, error) {
	pg := &PowerGraph{
		g:     multi.NewUndirectedGraph(),
		lines: make(map[BranchID]graph.Line),
	}
	for _, etype := range []string{TypeACLine, TypeTransformer} {
		t, ok := ds.Table(etype)
		if !ok {
			continue
		}
		if err := t.requireColumns(ColMark, ColIBus, ColJBus); err != nil {
			return nil, err
		}
		for _, id := range t.ids {
			r := t.rows[id]
			if onlyInService && r.num[ColMark] != 1 {
				continue
			}
			i := int64(r.num[ColIBus])
			j := int64(r.num[ColJBus])
			if i == j {
				continue
			}
			key := BranchID{Type: etype, Name: id}
			if _, dup := pg.lines[key]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateRow, key)
			}
			line := pg.g.NewLine(multi.Node(i), multi.Node(j))
			pg.g.SetLine(line)
			pg.lines[key] = line
		}
	}
	return pg, nil
}

// HasBranch reports whether the branch is present in the graph.
func (pg *PowerGraph) HasBranch(id BranchID) bool {
	_, ok := pg.lines[id]
	return ok
}

// Endpoints returns the bus pair of a branch still present in the graph.
func (pg *PowerGraph) Endpoints(id BranchID) (int64, int64, bool) {
	l, ok := pg.lines[id]
	if !ok {
		return 0, 0, false
	}
	return l.From().ID(), l.To().ID(), true
}

// RemoveBranch deletes the branch's line from the graph. Unknown branches
// are ignored.
func (pg *PowerGraph) RemoveBranch(id BranchID) {
	l, ok := pg.lines[id]
	if !ok {
		return
	}
	pg.g.RemoveLine(l.From().ID(), l.To().ID(), l.ID())
	delete(pg.lines, id)
}

// IsConnected reports whether buses a and b are connected when the excluded
// branches are treated as open. Parallel circuits count: excluding one
// branch of a double circuit leaves the pair connected through its sibling.
func (pg *PowerGraph) IsConnected(a, b int64, excluded ...BranchID) bool {
	if a == b {
		return true
	}
	na := pg.g.Node(a)
	nb := pg.g.Node(b)
	if na == nil || nb == nil {
		return false
	}
	skip := make(map[lineKey]struct{}, len(excluded))
	for _, id := range excluded {
		if l, ok := pg.lines[id]; ok {
			skip[keyOfLine(l)] = struct{}{}
		}
	}
	bfs := traverse.BreadthFirst{
		Traverse: func(e graph.Edge) bool {
			lines := pg.g.Lines(e.From().ID(), e.To().ID())
			for lines.Next() {
				if _, drop := skip[keyOfLine(lines.Line())]; !drop {
					return true
				}
			}
			return false
		},
	}
	return bfs.Walk(pg.g, na, func(n graph.Node, _ int) bool { return n.ID() == b }) != nil
}
