// Package editor implements the modal state machine: a central reducer
// over a closed set of modes and actions, wiring the buffer, undo tree,
// layer compositor, double buffer, keymap dispatcher, job manager,
// notification center, settings registry, and command-line parser
// together into one event loop. Grounded on original_source/src/editor/*
// (Editor, DocumentManager, Mode, open_file/remove_document/
// handle_execution_result/handle_action) and spec.md §9's "Dynamic
// modal state machine" note.
package editor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vtedit/core/internal/fsx"
	"github.com/vtedit/core/pkg/apperr"
	"github.com/vtedit/core/pkg/buffer"
	"github.com/vtedit/core/pkg/char"
	"github.com/vtedit/core/pkg/config"
	"github.com/vtedit/core/pkg/editor/command"
	"github.com/vtedit/core/pkg/job"
	"github.com/vtedit/core/pkg/keymap"
	"github.com/vtedit/core/pkg/layer"
	"github.com/vtedit/core/pkg/notify"
	"github.com/vtedit/core/pkg/render"
	"github.com/vtedit/core/pkg/screen"
	"github.com/vtedit/core/pkg/search"
	"github.com/vtedit/core/pkg/term"
	"github.com/vtedit/core/pkg/undo"
	"github.com/vtedit/core/pkg/undotree"
)

// ModeKind tags which of the fixed set of modes the editor is in.
type ModeKind int

const (
	ModeNormal ModeKind = iota
	ModeInsert
	ModeCommand
	ModeSearch
	ModeFileExplorer
	ModeUndoTree
)

// String is also the keymap.Context name for this mode, so dispatch and
// display share one source of truth.
func (k ModeKind) String() string {
	switch k {
	case ModeNormal:
		return "Normal"
	case ModeInsert:
		return "Insert"
	case ModeCommand:
		return "Command"
	case ModeSearch:
		return "Search"
	case ModeFileExplorer:
		return "FileExplorer"
	case ModeUndoTree:
		return "UndoTree"
	}
	return "Normal"
}

// context is the keymap.Context this mode's bindings are scoped under.
func (k ModeKind) context() keymap.Context { return keymap.Context(k.String()) }

// Mode is a tagged union: Kind selects which of Line/Query is live,
// per spec.md §9's "model Mode as a tagged sum with per-mode data."
type Mode struct {
	Kind     ModeKind
	Line     string // Command mode's line editor content (no leading ':')
	Query    string // Search mode's query-so-far
	Selected int    // UndoTree mode's selected row, an index into its selectable seqs
}

// Document is one open buffer: text, its undo history, and identity.
type Document struct {
	ID   uuid.UUID
	Path string // empty means unnamed ("[No Name]")

	Buffer *buffer.Buffer
	Undo   *undo.Tree
}

func newDocument() *Document {
	buf := buffer.New()
	return &Document{
		ID:     uuid.New(),
		Buffer: buf,
		Undo:   undo.New(buf, undo.DefaultSnapshotInterval),
	}
}

// DisplayName is the tab label: the file's base name, or a placeholder
// for an unnamed buffer.
func (d *Document) DisplayName() string {
	if d.Path == "" {
		return "[No Name]"
	}
	return filepath.Base(d.Path)
}

// IsDirty reports whether the document has unsaved edits.
func (d *Document) IsDirty() bool { return d.Undo.IsDirty() }

// DocumentManager owns the open tab list and which one is active.
// Grounded on original_source/src/editor/tests.rs's exercised surface
// (tab_count, active_tab_index, get_document_id_at, has_unsaved_changes).
type DocumentManager struct {
	tabs   []*Document
	active int
}

func newDocumentManager() *DocumentManager {
	return &DocumentManager{tabs: []*Document{newDocument()}}
}

func (m *DocumentManager) TabCount() int     { return len(m.tabs) }
func (m *DocumentManager) ActiveIndex() int  { return m.active }
func (m *DocumentManager) Active() *Document { return m.tabs[m.active] }

// GetIDAt returns the id of the tab at index i.
func (m *DocumentManager) GetIDAt(i int) (uuid.UUID, bool) {
	if i < 0 || i >= len(m.tabs) {
		return uuid.UUID{}, false
	}
	return m.tabs[i].ID, true
}

// HasUnsavedChanges reports whether any open tab, active or not, is dirty.
func (m *DocumentManager) HasUnsavedChanges() bool {
	for _, d := range m.tabs {
		if d.IsDirty() {
			return true
		}
	}
	return false
}

func (m *DocumentManager) indexForPath(path string) (int, bool) {
	if path == "" {
		return 0, false
	}
	for i, d := range m.tabs {
		if d.Path == path {
			return i, true
		}
	}
	return 0, false
}

// openOrSwitch switches to path's tab if already open, else opens a new
// empty tab for it (content, if any, is filled in later by a load job)
// and returns it.
func (m *DocumentManager) openOrSwitch(path string) (doc *Document, isNew bool) {
	if i, ok := m.indexForPath(path); ok {
		m.active = i
		return m.tabs[i], false
	}
	d := newDocument()
	d.Path = path
	m.tabs = append(m.tabs, d)
	m.active = len(m.tabs) - 1
	return d, true
}

// next/prev switch tabs with wraparound, per
// ExecutionResult::BufferNext/BufferPrevious's observed behavior.
func (m *DocumentManager) next() {
	m.active = (m.active + 1) % len(m.tabs)
}

func (m *DocumentManager) prev() {
	m.active = (m.active - 1 + len(m.tabs)) % len(m.tabs)
}

// remove closes id's tab. Refuses (returning a Warning AppError) if the
// document is dirty, mirroring the original's "remove_dirty_tab"
// behavior; quitting past that refusal is the caller's job (`:q!`).
func (m *DocumentManager) remove(id uuid.UUID) error {
	idx := -1
	for i, d := range m.tabs {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	if m.tabs[idx].IsDirty() {
		return apperr.Warningf(apperr.Execution, "UNSAVED_CHANGES", "buffer %q has unsaved changes", m.tabs[idx].DisplayName())
	}
	m.tabs = append(m.tabs[:idx], m.tabs[idx+1:]...)
	if len(m.tabs) == 0 {
		m.tabs = []*Document{newDocument()}
	}
	if m.active >= len(m.tabs) {
		m.active = len(m.tabs) - 1
	}
	return nil
}

// fileLoaded is the job payload delivered once an OpenFile read completes,
// the concrete producer behind spec.md §3's "requests crossing the job
// boundary" for loading — actual disk I/O never runs on the main thread.
type fileLoaded struct {
	docID uuid.UUID
	path  string
	data  []byte
	err   error
}

// fileSaved is the job payload delivered once a Write completes.
type fileSaved struct {
	docID uuid.UUID
	path  string
	err   error
}

// action is one bound, executable Normal-mode operation. Grounded on
// original_source/src/editor/component_action_impl.rs's pattern: a
// closed match over a fixed action set, never open-ended dispatch.
type action func(e *Editor) error

// Editor owns every piece of live editor state and is the sole mutator
// of it, per spec.md §5 ("single main thread owns all editor state").
type Editor struct {
	docs *DocumentManager
	mode Mode

	keymap           *keymap.Dispatcher
	jobs             *job.Manager
	notifier         *notify.Center
	settings         *config.Settings
	settingsRegistry *config.Registry
	commands         *command.Registry

	compositor *layer.Compositor
	screenBuf  *screen.DoubleBuffer
	viewport   *render.Viewport
	term       term.Backend

	actions     map[string]action
	pendingKeys string // Normal-mode multi-key buffer, e.g. "g" waiting on "gg"
	shouldQuit  bool

	explorerDir      string
	explorerEntries  []fsx.Entry
	explorerSelected int
}

// New creates an editor sized to backend's current terminal dimensions.
func New(backend term.Backend) (*Editor, error) {
	rows, cols, err := backend.Size()
	if err != nil {
		return nil, apperr.Wrap(apperr.Io, "TERM_SIZE_ERROR", err)
	}
	e := &Editor{
		docs:             newDocumentManager(),
		mode:             Mode{Kind: ModeNormal},
		keymap:           keymap.New(),
		jobs:             job.New(),
		notifier:         notify.New(),
		settings:         config.Defaults(),
		settingsRegistry: config.NewRegistry(),
		commands:         command.NewRegistry(),
		compositor:       layer.NewCompositor(rows, cols),
		screenBuf:        screen.New(rows, cols),
		viewport:         render.NewViewport(rows, cols),
		term:             backend,
	}
	e.registerDefaultBindings()
	return e, nil
}

// ActiveDocument returns the document in the active tab.
func (e *Editor) ActiveDocument() *Document { return e.docs.Active() }

// ShouldQuit reports whether the event loop should exit.
func (e *Editor) ShouldQuit() bool { return e.shouldQuit }

// Mode returns the editor's current mode.
func (e *Editor) Mode() Mode { return e.mode }

// Settings returns the editor's live settings, mutated in place by `:set`.
func (e *Editor) Settings() *config.Settings { return e.settings }

func (e *Editor) registerAction(name string, fn action) {
	if e.actions == nil {
		e.actions = make(map[string]action)
	}
	e.actions[name] = fn
}

// registerDefaultBindings wires a minimal but complete Normal-mode key
// set onto the action table via pkg/keymap, the same context-scoped
// dispatch spec.md §3.5 describes.
func (e *Editor) registerDefaultBindings() {
	e.registerAction("move-left", func(e *Editor) error { e.ActiveDocument().Buffer.MoveLeft(); return nil })
	e.registerAction("move-right", func(e *Editor) error { e.ActiveDocument().Buffer.MoveRight(); return nil })
	e.registerAction("move-up", func(e *Editor) error { e.ActiveDocument().Buffer.MoveUp(); return nil })
	e.registerAction("move-down", func(e *Editor) error { e.ActiveDocument().Buffer.MoveDown(); return nil })
	e.registerAction("move-line-start", func(e *Editor) error { e.ActiveDocument().Buffer.MoveToLineStart(); return nil })
	e.registerAction("move-line-end", func(e *Editor) error { e.ActiveDocument().Buffer.MoveToLineEnd(); return nil })
	e.registerAction("move-word-left", func(e *Editor) error { e.ActiveDocument().Buffer.MoveWordLeft(); return nil })
	e.registerAction("move-word-right", func(e *Editor) error { e.ActiveDocument().Buffer.MoveWordRight(); return nil })
	e.registerAction("move-doc-start", func(e *Editor) error { e.ActiveDocument().Buffer.MoveToStart(); return nil })
	e.registerAction("move-doc-end", func(e *Editor) error { e.ActiveDocument().Buffer.MoveToEnd(); return nil })
	e.registerAction("delete-char-forward", func(e *Editor) error { return e.applyDelete(e.ActiveDocument(), 1, false) })
	e.registerAction("delete-char-backward", func(e *Editor) error { return e.applyDelete(e.ActiveDocument(), 1, true) })
	e.registerAction("undo", func(e *Editor) error { _, err := e.ActiveDocument().Undo.Undo(); return err })
	e.registerAction("redo", func(e *Editor) error { _, err := e.ActiveDocument().Undo.Redo(); return err })
	e.registerAction("enter-insert", func(e *Editor) error { e.mode = Mode{Kind: ModeInsert}; return nil })
	e.registerAction("enter-command", func(e *Editor) error { e.mode = Mode{Kind: ModeCommand}; return nil })
	e.registerAction("enter-search", func(e *Editor) error { e.mode = Mode{Kind: ModeSearch}; return nil })
	e.registerAction("enter-file-explorer", func(e *Editor) error {
		e.mode = Mode{Kind: ModeFileExplorer}
		dir := e.explorerDir
		if dir == "" {
			dir = explorerStartDir(e.ActiveDocument())
		}
		e.listDirectory(dir)
		return nil
	})
	e.registerAction("enter-undo-tree", func(e *Editor) error { e.mode = Mode{Kind: ModeUndoTree}; return nil })

	ctx := ModeNormal.context()
	n := e.keymap.Register
	n(ctx, "h", "move-left")
	n(ctx, "l", "move-right")
	n(ctx, "k", "move-up")
	n(ctx, "j", "move-down")
	n(ctx, "0", "move-line-start")
	n(ctx, "$", "move-line-end")
	n(ctx, "b", "move-word-left")
	n(ctx, "w", "move-word-right")
	n(ctx, "gg", "move-doc-start")
	n(ctx, "G", "move-doc-end")
	n(ctx, "x", "delete-char-forward")
	n(ctx, "u", "undo")
	n(ctx, "<C-r>", "redo")
	n(ctx, "i", "enter-insert")
	n(ctx, ":", "enter-command")
	n(ctx, "/", "enter-search")
	n(ctx, "U", "enter-undo-tree")
	n(ctx, "<C-e>", "enter-file-explorer")
}

// keyToken converts a decoded term.Key into the string vocabulary
// pkg/keymap binds against: plain runes as themselves, and a vim-style
// "<Name>" token for everything else (named keys, Ctrl-chords).
func keyToken(k term.Key) string {
	switch {
	case k.Name != "":
		return "<" + k.Name + ">"
	case k.Ctrl:
		return fmt.Sprintf("<C-%c>", k.Rune)
	default:
		return string(k.Rune)
	}
}

// applyInsert builds and applies an insert transaction, pushing it onto
// doc's undo tree. Every mutating keystroke goes through this (or
// applyDelete) rather than Buffer's bare convenience methods, so every
// edit is undoable.
func (e *Editor) applyInsert(doc *Document, s string) error {
	tx, err := doc.Buffer.ApplyTransaction("insert", func(b *buffer.TxBuilder) error {
		return b.InsertAt(b.Cursor(), s)
	})
	if err != nil {
		return err
	}
	if len(tx.Ops) > 0 {
		doc.Undo.Push(tx)
	}
	return nil
}

// applyDelete deletes n characters before (backward=true) or after the
// cursor, pushing the resulting transaction onto doc's undo tree.
func (e *Editor) applyDelete(doc *Document, n int, backward bool) error {
	cursor := doc.Buffer.Cursor()
	start, length := cursor, n
	if backward {
		start = cursor - n
		if start < 0 {
			start = 0
		}
		length = cursor - start
	} else {
		if start+n > doc.Buffer.Len() {
			length = doc.Buffer.Len() - start
		}
	}
	if length <= 0 {
		return nil
	}
	tx, err := doc.Buffer.ApplyTransaction("delete", func(b *buffer.TxBuilder) error {
		_, err := b.DeleteAt(start, length)
		return err
	})
	if err != nil {
		return err
	}
	if len(tx.Ops) > 0 {
		doc.Undo.Push(tx)
	}
	return nil
}

// HandleKey is the event-loop reducer: the single place mode
// transitions occur, per spec.md §9's "transitions occur in one place."
func (e *Editor) HandleKey(k term.Key) error {
	switch e.mode.Kind {
	case ModeNormal:
		return e.handleNormalKey(k)
	case ModeInsert:
		return e.handleInsertKey(k)
	case ModeCommand:
		return e.handleCommandKey(k)
	case ModeSearch:
		return e.handleSearchKey(k)
	case ModeFileExplorer:
		return e.handleFileExplorerKey(k)
	case ModeUndoTree:
		return e.handleUndoTreeKey(k)
	}
	return nil
}

// handleNormalKey resolves Normal-mode keystrokes against a buffer that
// accumulates across calls, so a multi-key sequence like "gg" keeps
// waiting on its second key instead of being dropped the moment
// e.keymap.Resolve reports Prefix for the bare "g".
func (e *Editor) handleNormalKey(k term.Key) error {
	if k.Name == "Esc" {
		e.pendingKeys = ""
		return nil
	}
	e.pendingKeys += keyToken(k)
	res := e.keymap.Resolve(ModeNormal.context(), e.pendingKeys)

	switch res.Result.Kind {
	case keymap.Prefix:
		return nil
	case keymap.None:
		e.pendingKeys = ""
		return nil
	}

	e.pendingKeys = ""
	count := res.Count
	if count <= 0 {
		count = 1
	}
	fn, ok := e.actions[string(res.Result.Action)]
	if !ok {
		return nil
	}
	for i := 0; i < count; i++ {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (e *Editor) handleInsertKey(k term.Key) error {
	doc := e.ActiveDocument()
	switch {
	case k.Name == "Esc":
		e.mode = Mode{Kind: ModeNormal}
		return nil
	case k.Name == "Enter":
		return e.applyInsert(doc, "\n")
	case k.Name == "Tab":
		if e.settings.ExpandTabs {
			return e.applyInsert(doc, strings.Repeat(" ", e.settings.TabWidth))
		}
		return e.applyInsert(doc, "\t")
	case k.Name == "Backspace":
		return e.applyDelete(doc, 1, true)
	case k.Name == "Delete":
		return e.applyDelete(doc, 1, false)
	case k.Ctrl || k.Name != "":
		return nil
	default:
		return e.applyInsert(doc, string(k.Rune))
	}
}

func (e *Editor) handleCommandKey(k term.Key) error {
	switch {
	case k.Name == "Esc":
		e.mode = Mode{Kind: ModeNormal}
	case k.Name == "Enter":
		line := e.mode.Line
		e.mode = Mode{Kind: ModeNormal}
		e.ExecuteCommandLine(line)
	case k.Name == "Backspace":
		if n := len(e.mode.Line); n > 0 {
			e.mode.Line = e.mode.Line[:n-1]
		}
	case k.Rune != 0 && !k.Ctrl && k.Name == "":
		e.mode.Line += string(k.Rune)
	}
	return nil
}

func (e *Editor) handleSearchKey(k term.Key) error {
	switch {
	case k.Name == "Esc":
		e.mode = Mode{Kind: ModeNormal}
	case k.Name == "Enter":
		query := e.mode.Query
		if query != "" && e.performSearch(query) {
			e.mode = Mode{Kind: ModeNormal}
		}
		// stays in Search mode on a failed/empty search
	case k.Name == "Backspace":
		if n := len(e.mode.Query); n > 0 {
			e.mode.Query = e.mode.Query[:n-1]
		}
	case k.Rune != 0 && !k.Ctrl && k.Name == "":
		e.mode.Query += string(k.Rune)
	}
	return nil
}

// explorerStartDir picks the directory a freshly opened file explorer
// lists: the active document's directory if it has a path, else the
// process's working directory.
func explorerStartDir(doc *Document) string {
	if doc.Path != "" {
		return filepath.Dir(doc.Path)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// listDirectory spawns a background listing job for dir, the file
// explorer's non-blocking analogue of doWrite/OpenFile's disk jobs.
func (e *Editor) listDirectory(dir string) {
	e.jobs.Spawn(fsx.ListDirectory(dir, false))
}

// handleFileExplorerKey navigates the directory listing: j/k move the
// selection, Enter descends into a directory or opens a file, h/Backspace
// goes up to the parent directory, and Esc closes the panel.
func (e *Editor) handleFileExplorerKey(k term.Key) error {
	switch {
	case k.Name == "Esc":
		e.compositor.ClearLayer(layer.FloatingWindow)
		e.mode = Mode{Kind: ModeNormal}
	case k.Name == "Enter":
		if e.explorerSelected < 0 || e.explorerSelected >= len(e.explorerEntries) {
			return nil
		}
		entry := e.explorerEntries[e.explorerSelected]
		if entry.IsDir {
			e.explorerSelected = 0
			e.listDirectory(entry.Path)
			return nil
		}
		e.compositor.ClearLayer(layer.FloatingWindow)
		e.mode = Mode{Kind: ModeNormal}
		_, err := e.OpenFile(entry.Path)
		return err
	case k.Rune == 'h' || k.Name == "Backspace":
		if e.explorerDir != "" {
			e.explorerSelected = 0
			e.listDirectory(filepath.Dir(e.explorerDir))
		}
	case k.Rune == 'j' || k.Name == "Down":
		if e.explorerSelected < len(e.explorerEntries)-1 {
			e.explorerSelected++
		}
	case k.Rune == 'k' || k.Name == "Up":
		if e.explorerSelected > 0 {
			e.explorerSelected--
		}
	}
	return nil
}

// undoTreeLines renders the active document's undo tree and separates
// out the seqs a navigator can actually land on (connector rows carry
// Seq -1 and are skipped).
func (e *Editor) undoTreeLines() (lines []undotree.Line, seqs []int) {
	doc := e.ActiveDocument()
	lines, _ = undotree.Render(doc.Undo)
	for _, l := range lines {
		if l.Seq != -1 {
			seqs = append(seqs, l.Seq)
		}
	}
	return lines, seqs
}

// handleUndoTreeKey navigates the undo-tree panel: j/k or the arrow
// keys move the selection, Enter jumps the document to the selected
// node, and Esc closes the panel without moving anywhere.
func (e *Editor) handleUndoTreeKey(k term.Key) error {
	_, seqs := e.undoTreeLines()
	if len(seqs) == 0 {
		e.mode = Mode{Kind: ModeNormal}
		return nil
	}
	if e.mode.Selected >= len(seqs) {
		e.mode.Selected = len(seqs) - 1
	}

	switch {
	case k.Name == "Esc":
		e.compositor.ClearLayer(layer.FloatingWindow)
		e.mode = Mode{Kind: ModeNormal}
	case k.Name == "Enter":
		target := seqs[e.mode.Selected]
		e.compositor.ClearLayer(layer.FloatingWindow)
		e.mode = Mode{Kind: ModeNormal}
		return e.ActiveDocument().Undo.Goto(target)
	case k.Rune == 'j' || k.Name == "Down":
		if e.mode.Selected < len(seqs)-1 {
			e.mode.Selected++
		}
	case k.Rune == 'k' || k.Name == "Up":
		if e.mode.Selected > 0 {
			e.mode.Selected--
		}
	}
	return nil
}

// performSearch reports whether query matched at least once in the
// active document, moving the cursor to the first match on success.
func (e *Editor) performSearch(query string) bool {
	doc := e.ActiveDocument()
	pat, err := search.Compile(query)
	if err != nil {
		e.notifier.Err(err.Error())
		return false
	}
	snap := doc.Buffer.Snapshot()
	data := snap.BytesRange(0, snap.Len())
	matches := search.FindAll(data, pat, snap.ByteToChar)
	if len(matches) == 0 {
		return false
	}
	return doc.Buffer.SetCursor(matches[0].StartChar) == nil
}

// ExecuteCommandLine parses and runs a `:`-command line, the Ex-style
// surface spec.md §6 sketches. Routes structured errors to the
// notification center by severity rather than propagating them, except
// Critical, which bypasses notifications entirely.
func (e *Editor) ExecuteCommandLine(line string) {
	parsed := command.Parse(e.commands, line)
	if err := e.execute(parsed); err != nil {
		e.reportError(err)
	}
}

func (e *Editor) reportError(err error) {
	var ae *apperr.AppError
	if ok := asAppError(err, &ae); ok {
		if ae.Severity == apperr.Critical {
			e.shouldQuit = true
			return
		}
		e.notifier.Push(notify.KindFromSeverity(ae.Severity), ae.Message)
		return
	}
	e.notifier.Err(err.Error())
}

func asAppError(err error, target **apperr.AppError) bool {
	ae, ok := err.(*apperr.AppError)
	if ok {
		*target = ae
	}
	return ok
}

func (e *Editor) execute(p command.Parsed) error {
	switch p.Kind {
	case command.Quit:
		return e.doQuit(p.Bangs > 0)
	case command.Write:
		return e.doWrite(p.Path, p.Bangs > 0)
	case command.WriteQuit:
		if err := e.doWrite(p.Path, true); err != nil {
			return err
		}
		return e.doQuit(true)
	case command.Edit:
		_, err := e.OpenFile(p.Path)
		return err
	case command.Set:
		return e.doSet(p, false)
	case command.SetLocal:
		return e.doSet(p, true)
	case command.BufferNext:
		e.docs.next()
		return nil
	case command.BufferPrevious:
		e.docs.prev()
		return nil
	case command.Ambiguous:
		return apperr.New(apperr.Execution, "AMBIGUOUS_COMMAND", fmt.Sprintf("ambiguous command %q: matches %s", p.Name, strings.Join(p.Matches, ", ")))
	case command.Unknown:
		return apperr.New(apperr.Execution, "UNKNOWN_COMMAND", fmt.Sprintf("unknown command: %s", p.Name))
	}
	return nil
}

// doSet applies a Set/SetLocal command. Per spec.md, document-local
// overrides are not yet a distinct concern from global settings (no
// per-document options struct exists), so SetLocal mutates the same
// registry as Set — still routed through the one Registry.Execute path.
func (e *Editor) doSet(p command.Parsed, _local bool) error {
	if p.Option == "" {
		return apperr.New(apperr.Settings, "MISSING_OPTION", "missing option name")
	}
	if !p.HasValue {
		return apperr.New(apperr.Settings, "MISSING_VALUE", "missing value")
	}
	_, err := e.settingsRegistry.Execute(e.settings, p.Option, p.Value)
	return err
}

// doQuit mirrors handle_execution_result's Quit handling: refuses
// (non-fatally) when any tab has unsaved changes, unless force is set.
func (e *Editor) doQuit(force bool) error {
	if !force && e.docs.HasUnsavedChanges() {
		return apperr.Warningf(apperr.Execution, "UNSAVED_CHANGES", "unsaved changes in one or more buffers; use :q! to override")
	}
	e.shouldQuit = true
	return nil
}

// doWrite spawns a background save job for the active document (or
// path, if given) — file I/O never runs on the main thread, per
// spec.md's job-boundary requirement.
func (e *Editor) doWrite(path string, _force bool) error {
	doc := e.ActiveDocument()
	target := path
	if target == "" {
		target = doc.Path
	}
	if target == "" {
		return apperr.New(apperr.Execution, "NO_FILE_NAME", "no file name")
	}
	snap := doc.Buffer.Snapshot()
	data := snap.BytesRange(0, snap.Len())
	data = applyLineEnding(data, e.settings.LineEnding)
	docID := doc.ID

	e.jobs.Spawn(func(ctx context.Context, id int, sender job.Sender) error {
		err := os.WriteFile(target, data, 0o644)
		sender.Custom(fileSaved{docID: docID, path: target, err: err})
		return err
	})
	return nil
}

func applyLineEnding(data []byte, ending string) []byte {
	if ending != "crlf" && ending != "dos" && ending != "windows" {
		return data
	}
	return []byte(strings.ReplaceAll(string(data), "\n", "\r\n"))
}

// OpenFile switches to path's tab if already open, or opens a new tab
// for it and spawns a background load job to fill its contents — tab
// creation is synchronous (pure in-memory bookkeeping), the disk read
// is not.
func (e *Editor) OpenFile(path string) (uuid.UUID, error) {
	doc, isNew := e.docs.openOrSwitch(path)
	if !isNew || path == "" {
		return doc.ID, nil
	}

	docID := doc.ID
	e.jobs.Spawn(func(ctx context.Context, id int, sender job.Sender) error {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			sender.Custom(fileLoaded{docID: docID, path: path, data: nil, err: nil})
			return nil
		}
		sender.Custom(fileLoaded{docID: docID, path: path, data: data, err: err})
		return err
	})
	return docID, nil
}

// RemoveDocument closes id's tab.
func (e *Editor) RemoveDocument(id uuid.UUID) error {
	return e.docs.remove(id)
}

func (e *Editor) documentByID(id uuid.UUID) *Document {
	for i := 0; i < e.docs.TabCount(); i++ {
		if did, _ := e.docs.GetIDAt(i); did == id {
			return e.docs.tabs[i]
		}
	}
	return nil
}

// Tick drains job messages and expires notifications; call this once
// per event-loop iteration, per spec.md §5's non-blocking-drain
// suspension point.
func (e *Editor) Tick(now time.Time) {
	e.notifier.Tick(now)
	for _, msg := range e.jobs.Drain() {
		e.applyJobMessage(msg)
	}
	e.jobs.Reap()
}

func (e *Editor) applyJobMessage(msg job.Message) {
	switch p := msg.Payload.(type) {
	case fileLoaded:
		doc := e.documentByID(p.docID)
		if doc == nil {
			return
		}
		if p.err != nil {
			e.notifier.Err(fmt.Sprintf("failed to open %s: %v", p.path, p.err))
			return
		}
		doc.Buffer = buffer.NewFromString(string(p.data))
		doc.Undo = undo.New(doc.Buffer, undo.DefaultSnapshotInterval)
	case fileSaved:
		doc := e.documentByID(p.docID)
		if doc == nil {
			return
		}
		if p.err != nil {
			e.notifier.Err(fmt.Sprintf("failed to write %s: %v", p.path, p.err))
			return
		}
		doc.Path = p.path
		doc.Undo.MarkSaved()
		e.notifier.Success(fmt.Sprintf("\"%s\" written", p.path))
	case fsx.Listing:
		e.explorerDir = p.Path
		e.explorerEntries = p.Entries
		if e.explorerSelected >= len(e.explorerEntries) {
			e.explorerSelected = 0
		}
	}
}

// Resize propagates a terminal resize to the compositor, double buffer,
// and viewport, forcing a full redraw on the next render.
func (e *Editor) Resize(rows, cols int) {
	e.compositor.Resize(rows, cols)
	e.screenBuf.Resize(rows, cols)
	e.viewport.SetSize(rows, cols)
}

// Render paints the content layer from the active document, composites
// every layer, and writes whatever changed to the terminal.
func (e *Editor) Render() error {
	doc := e.ActiveDocument()
	snap := doc.Buffer.Snapshot()
	line := snap.LineOfChar(snap.Cursor())
	e.viewport.Update(line, snap.LineCount())

	content := e.compositor.LayerMut(layer.Content)
	render.Render(content, snap, e.viewport, nil, e.settings.TabWidth, nil)

	switch e.mode.Kind {
	case ModeUndoTree:
		e.renderUndoTree()
	case ModeFileExplorer:
		e.renderFileExplorer()
	}

	e.compositor.Composite()
	e.screenBuf.SetCurrent(e.compositor.Composited())
	return e.screenBuf.RenderToTerminal(e.term)
}

// renderUndoTree paints the undo-tree panel into the floating-window
// layer, reverse-highlighting the selected row.
func (e *Editor) renderUndoTree() {
	lines, seqs := e.undoTreeLines()
	if len(seqs) == 0 {
		return
	}
	if e.mode.Selected >= len(seqs) {
		e.mode.Selected = len(seqs) - 1
	}
	selectedSeq := seqs[e.mode.Selected]

	panel := e.compositor.LayerMut(layer.FloatingWindow)
	panel.Clear()

	fg := e.settings.EditorBackground
	bg := e.settings.EditorForeground

	row := 1
	for _, l := range lines {
		if row >= panel.Rows() {
			break
		}
		runes := []rune(l.Text)
		chars := make([]char.Character, len(runes))
		for i, r := range runes {
			chars[i] = char.Unicode(r)
		}
		if l.Seq == selectedSeq {
			panel.WriteString(row, 2, chars, &fg, &bg)
		} else {
			panel.WriteString(row, 2, chars, nil, nil)
		}
		row++
	}
}

// renderFileExplorer paints the current directory listing into the
// floating-window layer, reverse-highlighting the selected entry and
// marking directories with a trailing slash.
func (e *Editor) renderFileExplorer() {
	panel := e.compositor.LayerMut(layer.FloatingWindow)
	panel.Clear()

	fg := e.settings.EditorBackground
	bg := e.settings.EditorForeground

	header := []rune(e.explorerDir)
	headerChars := make([]char.Character, len(header))
	for i, r := range header {
		headerChars[i] = char.Unicode(r)
	}
	panel.WriteString(0, 2, headerChars, nil, nil)

	for i, entry := range e.explorerEntries {
		row := i + 1
		if row >= panel.Rows() {
			break
		}
		name := entry.Name
		if entry.IsDir {
			name += "/"
		}
		runes := []rune(name)
		chars := make([]char.Character, len(runes))
		for j, r := range runes {
			chars[j] = char.Unicode(r)
		}
		if i == e.explorerSelected {
			panel.WriteString(row, 2, chars, &fg, &bg)
		} else {
			panel.WriteString(row, 2, chars, nil, nil)
		}
	}
}

// Frame returns the grid Render last composited, plus the cursor's
// screen row/column — the input a remote viewer (pkg/remote) needs to
// mirror what the real terminal just received, without reaching into
// the compositor or viewport itself.
func (e *Editor) Frame() (grid [][]layer.Cell, cursorRow, cursorCol int) {
	doc := e.ActiveDocument()
	snap := doc.Buffer.Snapshot()
	cursor := snap.Cursor()
	line := snap.LineOfChar(cursor)

	col := 0
	for pos := snap.LineStart(line); pos < cursor; pos++ {
		c, ok := snap.CharAt(pos)
		if !ok {
			break
		}
		col += c.RenderWidth(col, e.settings.TabWidth)
	}

	return e.screenBuf.Grid(), line - e.viewport.TopLine(), col
}
