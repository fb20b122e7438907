package debugger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lookbusy1344/lua-vm/tools"
	"github.com/lookbusy1344/lua-vm/vm"
)

// TUI represents the text user interface for the debugger
type TUI struct {
	// Core components
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	// Layout containers
	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	// View panels
	BytecodeView    *tview.TextView
	StackView       *tview.TextView
	GlobalsView     *tview.TextView
	ConstantsView   *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	// Disassembler for the bytecode listing
	dis *tools.Disassembler
}

// NewTUI creates a new text user interface
func NewTUI(debugger *Debugger) *TUI {
	tui := &TUI{
		Debugger: debugger,
		App:      tview.NewApplication(),
		dis:      tools.NewDisassembler(tools.DefaultFormatOptions()),
	}

	tui.initializeViews()
	tui.buildLayout()
	tui.setupKeyBindings()

	return tui
}

// initializeViews creates all the view panels
func (t *TUI) initializeViews() {
	// Bytecode listing
	t.BytecodeView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BytecodeView.SetBorder(true).SetTitle(" Bytecode ")

	// Register stack
	t.StackView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.StackView.SetBorder(true).SetTitle(" Stack ")

	// Globals
	t.GlobalsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.GlobalsView.SetBorder(true).SetTitle(" Globals ")

	// Constant pool
	t.ConstantsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.ConstantsView.SetBorder(true).SetTitle(" Constants ")

	// Breakpoints / watchpoints
	t.BreakpointsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints/Watchpoints ")

	// Output
	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	// Command Input
	t.CommandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

// buildLayout constructs the TUI layout
func (t *TUI) buildLayout() {
	// Left panel: the bytecode listing
	t.LeftPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.BytecodeView, 0, 1, false)

	// Right panel top: stack, globals, constants
	rightTop := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.StackView, 0, 2, false).
		AddItem(t.GlobalsView, 0, 1, false).
		AddItem(t.ConstantsView, 0, 1, false)

	// Right panel: top + breakpoints
	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rightTop, 0, 3, false).
		AddItem(t.BreakpointsView, BreakpointsViewRows, 0, false)

	// Main content: left and right panels
	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LeftPanel, 0, 2, false).
		AddItem(t.RightPanel, 0, 1, false)

	// Main layout: content + output + command
	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, OutputViewRows, 0, false).
		AddItem(t.CommandInput, CommandInputRows, 0, true)

	// Create pages for potential dialogs/modals
	t.Pages = tview.NewPages().
		AddPage("main", t.MainLayout, true, true)
}

// setupKeyBindings sets up keyboard shortcuts
func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			t.executeCommand("help")
			return nil
		case tcell.KeyF5:
			t.executeCommand("continue")
			return nil
		case tcell.KeyF10, tcell.KeyF11:
			t.executeCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

// handleCommand processes command input
func (t *TUI) handleCommand(key tcell.Key) {
	if key == tcell.KeyEnter {
		cmd := t.CommandInput.GetText()
		if cmd != "" {
			t.executeCommand(cmd)
			t.CommandInput.SetText("")
		}
	}
}

// executeCommand executes a debugger command and drives the run loop when
// the command started execution
func (t *TUI) executeCommand(cmd string) {
	if cmd == "quit" || cmd == "q" || cmd == "exit" {
		t.App.Stop()
		return
	}

	// Clear previous output
	t.Debugger.Output.Reset()

	err := t.Debugger.ExecuteCommand(cmd)
	output := t.Debugger.GetOutput()

	if err != nil {
		t.WriteOutput(fmt.Sprintf("[red]Error:[white] %v\n", err))
	}
	if output != "" {
		t.WriteOutput(output)
	}

	if t.Debugger.Running {
		t.runUntilBreak()
	}

	t.RefreshAll()
}

// runUntilBreak steps the VM until a breakpoint, watchpoint, halt, or
// error
func (t *TUI) runUntilBreak() {
	dbg := t.Debugger
	for dbg.Running {
		if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
			dbg.Running = false
			t.WriteOutput(fmt.Sprintf("Stopped: %s at bytecode %d\n", reason, dbg.VM.PC()))
			break
		}
		if err := dbg.VM.Step(); err != nil {
			t.WriteOutput(fmt.Sprintf("[red]Runtime error:[white] %v\n", err))
			dbg.Running = false
			break
		}
		if dbg.VM.State == vm.StateHalted {
			dbg.Running = false
			t.WriteOutput("Program finished\n")
			break
		}
	}
}

// WriteOutput writes to the output view
func (t *TUI) WriteOutput(text string) {
	_, _ = t.OutputView.Write([]byte(text)) // Ignore write errors in TUI
	t.OutputView.ScrollToEnd()
}

// RefreshAll refreshes every view panel
func (t *TUI) RefreshAll() {
	t.refreshBytecode()
	t.refreshStack()
	t.refreshGlobals()
	t.refreshConstants()
	t.refreshBreakpoints()
}

// refreshBytecode renders the listing with the current instruction
// highlighted and breakpoints marked
func (t *TUI) refreshBytecode() {
	dbg := t.Debugger
	pc := dbg.VM.PC()

	var sb strings.Builder
	for i := range dbg.Proto.Bytecodes {
		marker := "  "
		if dbg.Breakpoints.HasBreakpoint(i) {
			marker = "[red]●[white] "
		}
		line := tview.Escape(t.dis.DisassembleLine(i, dbg.Proto))
		if i == pc {
			fmt.Fprintf(&sb, "%s[yellow]=> %s[white]\n", marker, line)
		} else {
			fmt.Fprintf(&sb, "%s   %s\n", marker, line)
		}
	}
	t.BytecodeView.SetText(sb.String())
}

func (t *TUI) refreshStack() {
	dbg := t.Debugger

	var sb strings.Builder
	fmt.Fprintf(&sb, "PC: %d   Steps: %d\n\n", dbg.VM.PC(), dbg.VM.Steps())
	for i := 0; i < dbg.VM.StackLen(); i++ {
		name := ""
		if i < len(dbg.Proto.Locals) {
			name = "  [green]" + dbg.Proto.Locals[i] + "[white]"
		}
		fmt.Fprintf(&sb, "$%-3d %s%s\n", i, tview.Escape(dbg.VM.StackGet(i).String()), name)
	}
	t.StackView.SetText(sb.String())
}

func (t *TUI) refreshGlobals() {
	dbg := t.Debugger
	names := dbg.VM.GlobalNames()
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s = %s\n", name, tview.Escape(dbg.VM.Global(name).String()))
	}
	t.GlobalsView.SetText(sb.String())
}

func (t *TUI) refreshConstants() {
	dbg := t.Debugger

	var sb strings.Builder
	for i, c := range dbg.Proto.Constants {
		fmt.Fprintf(&sb, "[%d] %s\n", i, tview.Escape(fmt.Sprintf("%#v", c)))
	}
	t.ConstantsView.SetText(sb.String())
}

func (t *TUI) refreshBreakpoints() {
	dbg := t.Debugger

	var sb strings.Builder
	bps := dbg.Breakpoints.GetAllBreakpoints()
	sort.Slice(bps, func(i, j int) bool { return bps[i].ID < bps[j].ID })
	for _, bp := range bps {
		state := ""
		if !bp.Enabled {
			state = " (disabled)"
		}
		fmt.Fprintf(&sb, "break %d @ %d%s\n", bp.ID, bp.Index, state)
	}
	wps := dbg.Watchpoints.GetAllWatchpoints()
	sort.Slice(wps, func(i, j int) bool { return wps[i].ID < wps[j].ID })
	for _, wp := range wps {
		fmt.Fprintf(&sb, "watch %d %s\n", wp.ID, wp.Expression)
	}
	t.BreakpointsView.SetText(sb.String())
}

// Run starts the TUI event loop
func (t *TUI) Run() error {
	// Program output (print) lands in the output panel instead of stdout.
	t.Debugger.VM.OutputWriter = t.OutputView
	t.RefreshAll()
	t.WriteOutput("Type 'help' for commands, 'quit' to exit\n")
	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}
