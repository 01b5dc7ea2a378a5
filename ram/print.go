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

import (
	"fmt"
	"strings"
)

// The Stringers below render programs the way the compiler's
// debug output does: one statement per line, two-space
// indentation, slots as $n and row variables as xN.

func (p *Program) String() string {
	var sb strings.Builder
	for i := range p.Indexes {
		in := &p.Indexes[i]
		fmt.Fprintf(&sb, "$%d: %s/%s key=%v\n", i, in.Sym.Name, in.Role, in.Key)
	}
	writeStmt(&sb, p.Stmt, 0)
	return sb.String()
}

func indent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}
}

func writeStmt(sb *strings.Builder, s Stmt, depth int) {
	indent(sb, depth)
	switch s := s.(type) {
	case *Insert:
		sb.WriteString("insert\n")
		writeOp(sb, s.Op, depth+1)
	case *MergeInto:
		op := "union"
		if s.Lat != nil {
			op = "lub"
		}
		fmt.Fprintf(sb, "merge $%d into $%d (%s)\n", s.Src, s.Dst, op)
	case *Swap:
		fmt.Fprintf(sb, "swap $%d, $%d\n", s.A, s.B)
	case *Purge:
		fmt.Fprintf(sb, "purge $%d\n", s.Slot)
	case *Seq:
		sb.WriteString("seq {\n")
		for i := range s.Stmts {
			writeStmt(sb, s.Stmts[i], depth+1)
		}
		indent(sb, depth)
		sb.WriteString("}\n")
	case *Until:
		sb.WriteString("until")
		for i := range s.Tests {
			if i > 0 {
				sb.WriteString(" &&")
			}
			sb.WriteString(" " + s.Tests[i].String())
		}
		sb.WriteString(" {\n")
		writeStmt(sb, s.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("}\n")
	case *Par:
		sb.WriteString("par {\n")
		for i := range s.Stmts {
			writeStmt(sb, s.Stmts[i], depth+1)
		}
		indent(sb, depth)
		sb.WriteString("}\n")
	case *Comment:
		fmt.Fprintf(sb, "// %s\n", s.Text)
	default:
		fmt.Fprintf(sb, "<stmt %T>\n", s)
	}
}

func stmtString(s Stmt) string {
	var sb strings.Builder
	writeStmt(&sb, s, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (s *Insert) String() string    { return stmtString(s) }
func (s *MergeInto) String() string { return stmtString(s) }
func (s *Swap) String() string      { return stmtString(s) }
func (s *Purge) String() string     { return stmtString(s) }
func (s *Seq) String() string       { return stmtString(s) }
func (s *Until) String() string     { return stmtString(s) }
func (s *Par) String() string       { return stmtString(s) }
func (s *Comment) String() string   { return stmtString(s) }

func writeScan(sb *strings.Builder, kind string, s *Scan, depth int) {
	indent(sb, depth)
	fmt.Fprintf(sb, "%s x%d in $%d", kind, s.Var, s.Slot)
	if s.MeetWith != NoVar {
		fmt.Fprintf(sb, " meet x%d", s.MeetWith)
	}
	for i := range s.Writes {
		w := &s.Writes[i]
		fmt.Fprintf(sb, " [%d -> x%d.%d]", w.Src, w.DstVar, w.Dst)
	}
	sb.WriteString(" {\n")
	writeOp(sb, s.Body, depth+1)
	indent(sb, depth)
	sb.WriteString("}\n")
}

func writeOp(sb *strings.Builder, op RelOp, depth int) {
	switch op := op.(type) {
	case *Search:
		writeScan(sb, "search", &op.Scan, depth)
	case *Query:
		writeScan(sb, "query", &op.Scan, depth)
	case *If:
		indent(sb, depth)
		sb.WriteString("if")
		for i := range op.Conds {
			if i > 0 {
				sb.WriteString(" &&")
			}
			sb.WriteString(" " + op.Conds[i].String())
		}
		sb.WriteString(" {\n")
		writeOp(sb, op.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("}\n")
	case *Project:
		indent(sb, depth)
		fmt.Fprintf(sb, "project %s into $%d\n", termList(op.Terms), op.Slot)
	case *Functional:
		indent(sb, depth)
		fmt.Fprintf(sb, "functional x%d = f%s", op.Var, termList(op.Args))
		for i := range op.Writes {
			w := &op.Writes[i]
			fmt.Fprintf(sb, " [%d -> x%d.%d]", w.Src, w.DstVar, w.Dst)
		}
		sb.WriteString(" {\n")
		writeOp(sb, op.Body, depth+1)
		indent(sb, depth)
		sb.WriteString("}\n")
	default:
		indent(sb, depth)
		fmt.Fprintf(sb, "<op %T>\n", op)
	}
}

func opString(op RelOp) string {
	var sb strings.Builder
	writeOp(&sb, op, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (op *Search) String() string     { return opString(op) }
func (op *Query) String() string      { return opString(op) }
func (op *If) String() string         { return opString(op) }
func (op *Project) String() string    { return opString(op) }
func (op *Functional) String() string { return opString(op) }

func termList(ts []RamTerm) string {
	parts := make([]string, len(ts))
	for i := range ts {
		parts[i] = ts[i].String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t *Lit) String() string { return t.Val.String() }

func (t *LoadFromTuple) String() string { return fmt.Sprintf("x%d[%d]", t.Var, t.Col) }

func (t *LoadLatVar) String() string { return fmt.Sprintf("lat(x%d)", t.Var) }

func (t *Meet) String() string { return fmt.Sprintf("glb(%s, %s)", t.Lhs, t.Rhs) }

func (t *App) String() string { return "app" + termList(t.Args) }

func (e *Not) String() string { return "!" + e.Exp.String() }

func (e *IsEmpty) String() string { return fmt.Sprintf("empty($%d)", e.Slot) }

func (e *NotMemberOf) String() string {
	return fmt.Sprintf("%s not-in $%d", termList(e.Terms), e.Slot)
}

func (e *Eq) String() string { return fmt.Sprintf("%s == %s", e.Lhs, e.Rhs) }

func (e *Leq) String() string { return fmt.Sprintf("%s <= lat(x%d)", e.Val, e.Var) }

func (e *Guard) String() string { return "guard" + termList(e.Args) }
