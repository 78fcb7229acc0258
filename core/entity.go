package core

import "fmt"

// EntityInput is the caller-owned byte source the parser borrows for the
// lifetime of one parse. Exactly one of Bytes/Chars/Text is meaningful;
// Bytes is the common case requiring encoding detection.
type EntityInput struct {
	PublicID     string
	SystemID     string
	BaseURI      string
	EncodingHint string
	Bytes        []byte
	Chars        []rune // already-decoded character stream; skips detection
	Text         string // full document as a string; skips detection
}

// EntityKind distinguishes the six tagged variants of Entity.
type EntityKind int

const (
	EntityDocument EntityKind = iota
	EntityExternalGeneralParsed
	EntityExternalUnparsed
	EntityInternalGeneral
	EntityExternalParameter
	EntityInternalParameter
)

// Entity is the tagged union described in the data model: a named body of
// replacement text or an external resource, general or parameter scoped.
type Entity struct {
	Kind            EntityKind
	Name            string
	Input           *EntityInput
	ReplacementText []rune
	NotationName    string // ExternalUnparsed only
}

func (e *Entity) isParameter() bool {
	return e.Kind == EntityExternalParameter || e.Kind == EntityInternalParameter
}

// EntityLocation is one hop in the traceback the error handler reports for
// entity-crossing errors.
type EntityLocation struct {
	EntityName string
	SystemID   string
	Line       int
	Column     int
}

// EntityFrame is one stack level of an active entity, carrying the
// scanner reading it and the position from which it was opened.
type EntityFrame struct {
	Entity     *Entity
	Scanner    *Scanner
	Decoder    Decoder
	OpenedFrom Position
	buf        *CharBuffer
}

// EntityManager owns the stack of active entities for one parse: push on
// entering an entity, pop on its EOF, with recursion detection and the
// well-formedness rules governing entity nesting.
type EntityManager struct {
	frames    []*EntityFrame
	byName    map[string]*Entity // general entities, document-wide
	byPName   map[string]*Entity // parameter entities
	pushedID  map[*Entity]bool   // identity-based recursion guard
	registry  *CodecRegistry
	readLimit int
	Trace     bool
	Tracer    func(string)
}

// NewEntityManager creates a manager with the given codec registry and
// scanner read-ahead limit (shared by every entity it opens).
func NewEntityManager(registry *CodecRegistry, readLimit int) *EntityManager {
	return &EntityManager{
		byName:    map[string]*Entity{},
		byPName:   map[string]*Entity{},
		pushedID:  map[*Entity]bool{},
		registry:  registry,
		readLimit: readLimit,
	}
}

func (m *EntityManager) trace(format string, args ...any) {
	if m.Trace && m.Tracer != nil {
		m.Tracer(fmt.Sprintf(format, args...))
	}
}

// DeclareGeneral registers a general entity by name. Redeclaration is
// ignored per XML 1.0 (the first declaration binds).
func (m *EntityManager) DeclareGeneral(e *Entity) {
	if _, exists := m.byName[e.Name]; !exists {
		m.byName[e.Name] = e
	}
}

// DeclareParameter registers a parameter entity by name.
func (m *EntityManager) DeclareParameter(e *Entity) {
	if _, exists := m.byPName[e.Name]; !exists {
		m.byPName[e.Name] = e
	}
}

// LookupGeneral returns a previously declared general entity.
func (m *EntityManager) LookupGeneral(name string) (*Entity, bool) {
	if r, ok := PredefinedEntities[name]; ok {
		return &Entity{Kind: EntityInternalGeneral, Name: name, ReplacementText: []rune{r}}, true
	}
	e, ok := m.byName[name]
	return e, ok
}

// LookupParameter returns a previously declared parameter entity.
func (m *EntityManager) LookupParameter(name string) (*Entity, bool) {
	e, ok := m.byPName[name]
	return e, ok
}

// Current returns the scanner for the innermost active entity, or nil if
// the stack is empty.
func (m *EntityManager) Current() *Scanner {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1].Scanner
}

// CurrentEntity returns the innermost active entity, or nil.
func (m *EntityManager) CurrentEntity() *Entity {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1].Entity
}

// Depth reports the number of active frames.
func (m *EntityManager) Depth() int { return len(m.frames) }

// PushDocument opens the document entity, the bottom frame of every
// parse.
func (m *EntityManager) PushDocument(input *EntityInput) error {
	e := &Entity{Kind: EntityDocument, Input: input}
	return m.push(e, false)
}

// PushExternal opens a named external entity (general or parameter).
// Pushing an entity already active by identity is a fatal recursion error.
func (m *EntityManager) PushExternal(e *Entity) error {
	return m.push(e, e.isParameter())
}

// PushInternal opens a named internal entity whose replacement text is
// already resolved.
func (m *EntityManager) PushInternal(e *Entity) error {
	return m.push(e, e.isParameter())
}

func (m *EntityManager) push(e *Entity, isParameter bool) error {
	if m.pushedID[e] {
		return fmt.Errorf("qcxml: entity %q recurses into itself", e.Name)
	}

	var from Position
	if cur := m.Current(); cur != nil {
		from = cur.CurrentPosition()
	}

	frame := &EntityFrame{Entity: e, OpenedFrom: from}

	switch {
	case e.Kind == EntityInternalGeneral || e.Kind == EntityInternalParameter:
		systemID := e.Name
		frame.buf = NewCharBuffer(m.readLimit)
		frame.buf.Append(NormalizeLineEndings(e.ReplacementText))
		frame.buf.MarkEOF()
		frame.Scanner = NewScanner(systemID, frame.buf, m.readLimit)
	case e.Input != nil:
		systemID := e.Input.SystemID
		buf := NewCharBuffer(m.readLimit)
		frame.buf = buf

		switch {
		case e.Input.Text != "":
			buf.Append(NormalizeLineEndings([]rune(e.Input.Text)))
			buf.MarkEOF()
		case e.Input.Chars != nil:
			buf.Append(NormalizeLineEndings(e.Input.Chars))
			buf.MarkEOF()
		default:
			dec, bomLen, err := m.openDecoder(e.Input)
			if err != nil {
				return err
			}
			frame.Decoder = dec
			rest := e.Input.Bytes[bomLen:]
			var produced []rune
			dec.Decode(rest, true, &produced)
			buf.Append(NormalizeLineEndings(produced))
			buf.MarkEOF()
		}
		frame.Scanner = NewScanner(systemID, buf, m.readLimit)
	default:
		return fmt.Errorf("qcxml: entity %q has neither input nor replacement text", e.Name)
	}

	m.pushedID[e] = true
	m.frames = append(m.frames, frame)
	m.trace("push entity %q (parameter=%v), depth=%d", e.Name, isParameter, len(m.frames))
	return nil
}

// ReopenCurrentWithEncoding re-decodes the innermost entity's raw bytes
// under a newly declared encoding, replacing its buffer and scanner.
// Returns reopened=true if a different codec actually got applied: the
// caller must then re-scan the entity from its start, since the old
// scanner's position no longer corresponds to anything. It is a no-op
// (false, nil) when the entity carries no raw bytes to redecode
// (Text/Chars input skips detection entirely), when an EncodingHint
// already pinned the codec, or when the declared name resolves to the
// codec already in use.
func (m *EntityManager) ReopenCurrentWithEncoding(name string) (bool, error) {
	if len(m.frames) == 0 {
		return false, nil
	}
	frame := m.frames[len(m.frames)-1]
	input := frame.Entity.Input
	if input == nil || input.Bytes == nil || input.EncodingHint != "" {
		return false, nil
	}

	dec, err := m.registry.Lookup(name)
	if err != nil {
		return false, err
	}
	if frame.Decoder != nil && normalizeEncodingName(dec.Name()) == normalizeEncodingName(frame.Decoder.Name()) {
		return false, nil
	}

	lookahead := input.Bytes
	if len(lookahead) > 4 {
		lookahead = lookahead[:4]
	}
	_, bomLen := DetectEncoding(lookahead)

	buf := NewCharBuffer(m.readLimit)
	var produced []rune
	dec.Decode(input.Bytes[bomLen:], true, &produced)
	buf.Append(NormalizeLineEndings(produced))
	buf.MarkEOF()

	frame.buf = buf
	frame.Decoder = dec
	frame.Scanner = NewScanner(input.SystemID, buf, m.readLimit)
	return true, nil
}

func (m *EntityManager) openDecoder(input *EntityInput) (Decoder, int, error) {
	name := input.EncodingHint
	lookahead := input.Bytes
	if len(lookahead) > 4 {
		lookahead = lookahead[:4]
	}
	bomLen := 0
	if name == "" {
		name, bomLen = DetectEncoding(lookahead)
	}
	dec, err := m.registry.Lookup(name)
	if err != nil {
		return nil, 0, err
	}
	return dec, bomLen, nil
}

// Pop closes the innermost entity on its EOF, propagating EOF to the
// parent only once the stack empties entirely.
func (m *EntityManager) Pop() (*Entity, error) {
	if len(m.frames) == 0 {
		return nil, fmt.Errorf("qcxml: Pop called with no active entity")
	}
	frame := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	delete(m.pushedID, frame.Entity)
	m.trace("pop entity %q, depth=%d", frame.Entity.Name, len(m.frames))
	return frame.Entity, nil
}

// AtEntityEOF reports whether the innermost entity's scanner has no more
// code points.
func (m *EntityManager) AtEntityEOF() bool {
	cur := m.Current()
	return cur == nil || cur.EOF()
}

// ReportPositionAcrossFrames returns the chain of enclosing entity
// locations, innermost first, for an error handler to render as a
// traceback.
func (m *EntityManager) ReportPositionAcrossFrames() []EntityLocation {
	locs := make([]EntityLocation, 0, len(m.frames))
	for i := len(m.frames) - 1; i >= 0; i-- {
		f := m.frames[i]
		pos := f.Scanner.CurrentPosition()
		locs = append(locs, EntityLocation{
			EntityName: f.Entity.Name,
			SystemID:   pos.SystemID,
			Line:       pos.Line,
			Column:     pos.Column,
		})
	}
	return locs
}
