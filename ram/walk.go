// Copyright (C) 2023 Stratalog Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package ram

// Node is any node of a RAM program tree: a statement, a
// relational operator, a term, or a boolean expression.
type Node interface {
	String() string
}

// Visitor is an interface that must be satisfied by the
// argument to Visit.
//
// A Visitor's Visit method is invoked for each node
// encountered by Walk. If the result visitor w is not nil,
// Walk visits each of the children of the node with the
// visitor w, followed by a call of w.Visit(nil).
//
// (see also: ast.Visitor)
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses a RAM tree in depth-first order: it starts
// by calling v.Visit(n); n must not be nil. If the visitor w
// returned by v.Visit(n) is not nil, Walk is invoked
// recursively with visitor w for each non-nil child of n,
// followed by a call of w.Visit(nil).
//
// (see also: ast.Walk)
func Walk(v Visitor, n Node) {
	w := v.Visit(n)
	if w == nil {
		return
	}
	for _, child := range children(n) {
		if child != nil {
			Walk(w, child)
		}
	}
	w.Visit(nil)
}

func children(n Node) []Node {
	switch n := n.(type) {
	case *Insert:
		return []Node{n.Op}
	case *Seq:
		out := make([]Node, len(n.Stmts))
		for i := range n.Stmts {
			out[i] = n.Stmts[i]
		}
		return out
	case *Par:
		out := make([]Node, len(n.Stmts))
		for i := range n.Stmts {
			out[i] = n.Stmts[i]
		}
		return out
	case *Until:
		out := make([]Node, 0, len(n.Tests)+1)
		for i := range n.Tests {
			out = append(out, n.Tests[i])
		}
		return append(out, n.Body)
	case *MergeInto, *Swap, *Purge, *Comment:
		return nil
	case *Search:
		return []Node{n.Body}
	case *Query:
		return []Node{n.Body}
	case *If:
		out := make([]Node, 0, len(n.Conds)+1)
		for i := range n.Conds {
			out = append(out, n.Conds[i])
		}
		return append(out, n.Body)
	case *Project:
		return termNodes(n.Terms)
	case *Functional:
		return append(termNodes(n.Args), n.Body)
	case *Lit, *LoadFromTuple, *LoadLatVar:
		return nil
	case *Meet:
		return []Node{n.Lhs, n.Rhs}
	case *App:
		return termNodes(n.Args)
	case *Not:
		return []Node{n.Exp}
	case *IsEmpty, *Leq:
		return nil
	case *NotMemberOf:
		return termNodes(n.Terms)
	case *Eq:
		return []Node{n.Lhs, n.Rhs}
	case *Guard:
		return termNodes(n.Args)
	default:
		return nil
	}
}

func termNodes(ts []RamTerm) []Node {
	out := make([]Node, len(ts))
	for i := range ts {
		out[i] = ts[i]
	}
	return out
}
