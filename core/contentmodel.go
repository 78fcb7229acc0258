package core

import "fmt"

// contentNode is a node of the element-content regular expression's parse
// tree: a leaf names a child element, the others are the regex
// combinators XML 1.0's `children` production allows.
type contentNode struct {
	kind     nodeKind
	name     string // leaf only
	children []*contentNode
	position int // leaf only; assigned during Glushkov numbering
}

type nodeKind int

const (
	nodeLeaf nodeKind = iota
	nodeSeq
	nodeChoice
	nodeStar
	nodePlus
	nodeOpt
)

// ContentDFA is the deterministic automaton compiled from a Children
// content model. State 0 is the start state; Accepting
// marks states from which the element may legally close.
type ContentDFA struct {
	transitions []map[string]int
	accepting   []bool
}

func (d *ContentDFA) Start() int { return 0 }

// Step returns the next state for name, or -1 (reject) if name is not a
// legal next child in the current state.
func (d *ContentDFA) Step(state int, name string) int {
	if state < 0 || state >= len(d.transitions) {
		return -1
	}
	if next, ok := d.transitions[state][name]; ok {
		return next
	}
	return -1
}

// Accepting reports whether state is a state from which the element may
// close (all children so far satisfy the model).
func (d *ContentDFA) Accepting(state int) bool {
	return state >= 0 && state < len(d.accepting) && d.accepting[state]
}

// CompileContentModel builds a deterministic automaton from a content
// node tree via Glushkov's position-automaton construction: each leaf
// becomes a distinct automaton state (its "position"), and transitions
// are derived from the tree's nullable/firstpos/lastpos/followpos sets.
// Because the leaves are already position-distinct, the result is
// automatically deterministic unless the model names the same child
// element reachable from two different positions with different follow
// sets that collapse ambiguously. CompileContentModel reports that case
// as an error rather than silently picking one: ambiguity of this kind
// is a DTD compatibility error.
func CompileContentModel(root *contentNode) (*ContentDFA, error) {
	positions := numberLeaves(root)
	n := len(positions)
	nullable := computeNullable(root)
	first := computeFirstPos(root, nullable)
	last := computeLastPos(root, nullable)
	follow := make([]map[int]struct{}, n+1)
	for i := range follow {
		follow[i] = map[int]struct{}{}
	}
	computeFollowPos(root, nullable, first, last, follow)

	// State index equals Glushkov position directly; state 0 is the
	// virtual start state with firstpos(root) as its outgoing positions.
	// Because every leaf is already a distinct position, determinism
	// reduces to: no state may have two differently-targeted transitions
	// on the same child name.
	dfa := &ContentDFA{
		transitions: make([]map[string]int, n+1),
		accepting:   make([]bool, n+1),
	}
	for i := range dfa.transitions {
		dfa.transitions[i] = map[string]int{}
	}
	dfa.accepting[0] = nullable[root]
	for p := range last[root] {
		dfa.accepting[p] = true
	}

	wire := func(fromState int, reachable map[int]struct{}) error {
		for pos := range reachable {
			name := positions[pos-1].name
			if existing, dup := dfa.transitions[fromState][name]; dup && existing != pos {
				return fmt.Errorf("qcxml: content model is ambiguous on child %q", name)
			}
			dfa.transitions[fromState][name] = pos
		}
		return nil
	}

	if err := wire(0, first[root]); err != nil {
		return nil, err
	}
	for pos := 1; pos <= n; pos++ {
		if err := wire(pos, follow[pos]); err != nil {
			return nil, err
		}
	}

	return dfa, nil
}

// Leaf/tree construction helpers used by the DTD content-spec parser.

func newLeaf(name string) *contentNode { return &contentNode{kind: nodeLeaf, name: name} }
func newSeq(children ...*contentNode) *contentNode {
	return &contentNode{kind: nodeSeq, children: children}
}
func newChoice(children ...*contentNode) *contentNode {
	return &contentNode{kind: nodeChoice, children: children}
}
func newStar(child *contentNode) *contentNode { return &contentNode{kind: nodeStar, children: []*contentNode{child}} }
func newPlus(child *contentNode) *contentNode { return &contentNode{kind: nodePlus, children: []*contentNode{child}} }
func newOpt(child *contentNode) *contentNode  { return &contentNode{kind: nodeOpt, children: []*contentNode{child}} }

func numberLeaves(root *contentNode) []*contentNode {
	var leaves []*contentNode
	var visit func(*contentNode)
	visit = func(n *contentNode) {
		if n.kind == nodeLeaf {
			leaves = append(leaves, n)
			n.position = len(leaves)
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(root)
	return leaves
}

func computeNullable(n *contentNode) map[*contentNode]bool {
	m := map[*contentNode]bool{}
	var visit func(*contentNode) bool
	visit = func(n *contentNode) bool {
		var r bool
		switch n.kind {
		case nodeLeaf:
			r = false
		case nodeSeq:
			r = true
			for _, c := range n.children {
				r = r && visit(c)
			}
		case nodeChoice:
			r = false
			for _, c := range n.children {
				r = r || visit(c)
			}
		case nodeStar, nodeOpt:
			visit(n.children[0])
			r = true
		case nodePlus:
			r = visit(n.children[0])
		}
		m[n] = r
		return r
	}
	visit(n)
	return m
}

func computeFirstPos(n *contentNode, nullable map[*contentNode]bool) map[*contentNode]map[int]struct{} {
	m := map[*contentNode]map[int]struct{}{}
	var visit func(*contentNode) map[int]struct{}
	visit = func(n *contentNode) map[int]struct{} {
		res := map[int]struct{}{}
		switch n.kind {
		case nodeLeaf:
			res[n.position] = struct{}{}
		case nodeSeq:
			for _, c := range n.children {
				cf := visit(c)
				for p := range cf {
					res[p] = struct{}{}
				}
				if !nullable[c] {
					break
				}
			}
		case nodeChoice:
			for _, c := range n.children {
				for p := range visit(c) {
					res[p] = struct{}{}
				}
			}
		case nodeStar, nodePlus, nodeOpt:
			for p := range visit(n.children[0]) {
				res[p] = struct{}{}
			}
		}
		m[n] = res
		return res
	}
	visit(n)
	return m
}

func computeLastPos(n *contentNode, nullable map[*contentNode]bool) map[*contentNode]map[int]struct{} {
	m := map[*contentNode]map[int]struct{}{}
	var visit func(*contentNode) map[int]struct{}
	visit = func(n *contentNode) map[int]struct{} {
		res := map[int]struct{}{}
		switch n.kind {
		case nodeLeaf:
			res[n.position] = struct{}{}
		case nodeSeq:
			for i := len(n.children) - 1; i >= 0; i-- {
				c := n.children[i]
				cl := visit(c)
				for p := range cl {
					res[p] = struct{}{}
				}
				if !nullable[c] {
					break
				}
			}
		case nodeChoice:
			for _, c := range n.children {
				for p := range visit(c) {
					res[p] = struct{}{}
				}
			}
		case nodeStar, nodePlus, nodeOpt:
			for p := range visit(n.children[0]) {
				res[p] = struct{}{}
			}
		}
		m[n] = res
		return res
	}
	visit(n)
	return m
}

func computeFollowPos(n *contentNode, nullable map[*contentNode]bool, first, last map[*contentNode]map[int]struct{}, follow []map[int]struct{}) {
	var visit func(*contentNode)
	visit = func(n *contentNode) {
		switch n.kind {
		case nodeSeq:
			for i := 0; i < len(n.children)-1; i++ {
				for p := range last[n.children[i]] {
					for q := range first[n.children[i+1]] {
						follow[p][q] = struct{}{}
					}
				}
			}
		case nodeStar, nodePlus:
			for p := range last[n.children[0]] {
				for q := range first[n.children[0]] {
					follow[p][q] = struct{}{}
				}
			}
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(n)
}

// contentSpecParser is a small recursive-descent parser for the `children`
// and `Mixed` productions of an <!ELEMENT> declaration, e.g.
// "(a,b*,(c|d)+)" or "(#PCDATA|a|b)*".
type contentSpecParser struct {
	src []rune
	pos int
}

// ParseContentModel parses a declared content-spec string (the text
// between an <!ELEMENT name and the terminating '>', trimmed) into a
// ContentModel. "EMPTY" and "ANY" are recognized literally.
func ParseContentModel(spec string) (ContentModel, error) {
	spec = trimSpace(spec)
	switch spec {
	case "EMPTY":
		return ContentModel{Kind: ContentEmpty}, nil
	case "ANY":
		return ContentModel{Kind: ContentAny}, nil
	}

	p := &contentSpecParser{src: []rune(spec)}
	if p.isMixed() {
		names, err := p.parseMixed()
		if err != nil {
			return ContentModel{}, err
		}
		return ContentModel{Kind: ContentMixed, AllowedChildren: names}, nil
	}

	node, err := p.parseChoiceOrSeq()
	if err != nil {
		return ContentModel{}, err
	}
	node = p.applyOccurrence(node)
	p.skipSpace()
	if p.pos != len(p.src) {
		return ContentModel{}, fmt.Errorf("qcxml: trailing content after content-spec at %d", p.pos)
	}
	dfa, err := CompileContentModel(node)
	if err != nil {
		return ContentModel{}, err
	}
	return ContentModel{Kind: ContentChildren, DFA: dfa}, nil
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isAsciiSpace(s[start]) {
		start++
	}
	for end > start && isAsciiSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isAsciiSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func (p *contentSpecParser) isMixed() bool {
	return containsAt(string(p.src), "#PCDATA")
}

func containsAt(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func (p *contentSpecParser) parseMixed() (map[string]struct{}, error) {
	p.skipSpace()
	if !p.consume('(') {
		return nil, fmt.Errorf("qcxml: mixed content must start with '('")
	}
	p.skipSpace()
	if !p.consumeLiteral("#PCDATA") {
		return nil, fmt.Errorf("qcxml: mixed content must start with #PCDATA")
	}
	names := map[string]struct{}{}
	for {
		p.skipSpace()
		if p.consume(')') {
			break
		}
		if !p.consume('|') {
			return nil, fmt.Errorf("qcxml: expected '|' or ')' in mixed content at %d", p.pos)
		}
		p.skipSpace()
		name := p.parseName()
		if name == "" {
			return nil, fmt.Errorf("qcxml: expected element name in mixed content at %d", p.pos)
		}
		names[name] = struct{}{}
	}
	p.skipSpace()
	p.consume('*') // "(#PCDATA)" alone (no trailing '*') is also legal
	return names, nil
}

func (p *contentSpecParser) parseChoiceOrSeq() (*contentNode, error) {
	p.skipSpace()
	if !p.consume('(') {
		name := p.parseName()
		if name == "" {
			return nil, fmt.Errorf("qcxml: expected element name or '(' at %d", p.pos)
		}
		return newLeaf(name), nil
	}

	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	items := []*contentNode{first}
	p.skipSpace()

	var sep rune
	for p.pos < len(p.src) && (p.src[p.pos] == ',' || p.src[p.pos] == '|') {
		if sep == 0 {
			sep = p.src[p.pos]
		} else if p.src[p.pos] != sep {
			return nil, fmt.Errorf("qcxml: cannot mix ',' and '|' in the same group at %d", p.pos)
		}
		p.pos++
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		items = append(items, term)
		p.skipSpace()
	}
	if !p.consume(')') {
		return nil, fmt.Errorf("qcxml: expected ')' at %d", p.pos)
	}

	if len(items) == 1 {
		return items[0], nil
	}
	if sep == '|' {
		return newChoice(items...), nil
	}
	return newSeq(items...), nil
}

func (p *contentSpecParser) parseTerm() (*contentNode, error) {
	node, err := p.parseChoiceOrSeq()
	if err != nil {
		return nil, err
	}
	return p.applyOccurrence(node), nil
}

func (p *contentSpecParser) applyOccurrence(node *contentNode) *contentNode {
	if p.pos >= len(p.src) {
		return node
	}
	switch p.src[p.pos] {
	case '*':
		p.pos++
		return newStar(node)
	case '+':
		p.pos++
		return newPlus(node)
	case '?':
		p.pos++
		return newOpt(node)
	}
	return node
}

func (p *contentSpecParser) parseName() string {
	start := p.pos
	for p.pos < len(p.src) && DefaultCharTypeFacet().IsNameChar(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *contentSpecParser) skipSpace() {
	for p.pos < len(p.src) && DefaultCharTypeFacet().IsS(p.src[p.pos]) {
		p.pos++
	}
}

func (p *contentSpecParser) consume(r rune) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == r {
		p.pos++
		return true
	}
	return false
}

func (p *contentSpecParser) consumeLiteral(lit string) bool {
	rl := []rune(lit)
	if p.pos+len(rl) > len(p.src) {
		return false
	}
	for i, r := range rl {
		if p.src[p.pos+i] != r {
			return false
		}
	}
	p.pos += len(rl)
	return true
}
