package debugger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lookbusy1344/lua-vm/tools"
	"github.com/lookbusy1344/lua-vm/vm"
)

// Command handler implementations

// cmdRun starts or restarts program execution from the first bytecode
func (d *Debugger) cmdRun(args []string) error {
	d.VM.Load(d.Proto)
	d.VM.State = vm.StateRunning
	d.Running = true

	d.Println("Starting program execution...")
	return nil
}

// cmdContinue continues execution from current point
func (d *Debugger) cmdContinue(args []string) error {
	if d.VM.State == vm.StateError {
		return fmt.Errorf("program is in error state")
	}
	if d.VM.PC() >= len(d.Proto.Bytecodes) {
		return fmt.Errorf("program has finished; use 'run' to restart")
	}

	d.VM.State = vm.StateRunning

	// Step off the current bytecode first so a breakpoint here doesn't
	// re-fire immediately.
	if err := d.VM.Step(); err != nil {
		return err
	}
	if d.VM.State == vm.StateHalted {
		d.Println("Program finished")
		return nil
	}
	d.Running = true

	d.Println("Continuing...")
	return nil
}

// cmdStep executes a single bytecode synchronously
func (d *Debugger) cmdStep(args []string) error {
	pc := d.VM.PC()
	if pc >= len(d.Proto.Bytecodes) {
		return fmt.Errorf("program has finished; use 'run' to restart")
	}
	d.VM.State = vm.StateRunning
	if err := d.VM.Step(); err != nil {
		return err
	}
	d.Printf("%04d: %s\n", pc, d.Proto.Bytecodes[pc])
	if d.VM.State == vm.StateHalted {
		d.Println("Program finished")
	}
	return nil
}

// cmdBreak sets a breakpoint
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <bytecode-index> [if <condition>]")
	}

	index, err := d.ResolveIndex(args[0])
	if err != nil {
		return err
	}

	// Parse condition if present
	var condition string
	if len(args) > 1 && strings.ToLower(args[1]) == "if" {
		condition = strings.Join(args[2:], " ")
	}

	bp := d.Breakpoints.AddBreakpoint(index, false, condition)

	if condition != "" {
		d.Printf("Breakpoint %d at bytecode %d (condition: %s)\n", bp.ID, index, condition)
	} else {
		d.Printf("Breakpoint %d at bytecode %d\n", bp.ID, index)
	}

	return nil
}

// cmdTBreak sets a temporary breakpoint (auto-delete after hit)
func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <bytecode-index>")
	}

	index, err := d.ResolveIndex(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(index, true, "")
	d.Printf("Temporary breakpoint %d at bytecode %d\n", bp.ID, index)

	return nil
}

// cmdDelete deletes breakpoint(s)
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		// Delete all breakpoints
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

// cmdEnable enables a breakpoint
func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

// cmdDisable disables a breakpoint
func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

// cmdWatch sets a watchpoint on a global name or a $N stack slot
func (d *Debugger) cmdWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <global-name | $slot>")
	}

	target := args[0]
	var wp *Watchpoint
	if strings.HasPrefix(target, "$") {
		slot, err := strconv.Atoi(target[1:])
		if err != nil || slot < 0 {
			return fmt.Errorf("invalid stack slot: %s", target)
		}
		wp = d.Watchpoints.AddSlotWatch(slot)
	} else {
		wp = d.Watchpoints.AddGlobalWatch(target)
	}

	if err := d.Watchpoints.Initialize(wp.ID, d.VM); err != nil {
		d.Watchpoints.DeleteWatchpoint(wp.ID)
		return err
	}

	d.Printf("Watchpoint %d: %s\n", wp.ID, wp.Expression)
	return nil
}

// cmdUnwatch deletes watchpoint(s)
func (d *Debugger) cmdUnwatch(args []string) error {
	if len(args) == 0 {
		d.Watchpoints.Clear()
		d.Println("All watchpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid watchpoint ID: %s", args[0])
	}

	if err := d.Watchpoints.DeleteWatchpoint(id); err != nil {
		return err
	}

	d.Printf("Watchpoint %d deleted\n", id)
	return nil
}

// cmdPrint evaluates and prints an expression
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expression>")
	}

	expr := strings.Join(args, " ")
	result, err := d.Evaluator.EvaluateExpression(expr, d.VM)
	if err != nil {
		return err
	}

	d.Printf("%s = %s  (%#v)\n", expr, result, result)
	return nil
}

// cmdInfo shows VM state: stack, globals, constants, breakpoints,
// watchpoints
func (d *Debugger) cmdInfo(args []string) error {
	what := "stack"
	if len(args) > 0 {
		what = strings.ToLower(args[0])
	}

	switch what {
	case "stack", "registers", "reg":
		d.infoStack()
	case "globals", "g":
		d.infoGlobals()
	case "constants", "const":
		d.infoConstants()
	case "breakpoints", "break", "b":
		d.infoBreakpoints()
	case "watchpoints", "watch", "w":
		d.infoWatchpoints()
	default:
		return fmt.Errorf("unknown info target: %s (stack, globals, constants, breakpoints, watchpoints)", what)
	}
	return nil
}

func (d *Debugger) infoStack() {
	d.Printf("PC: %d   Steps: %d   Stack depth: %d\n", d.VM.PC(), d.VM.Steps(), d.VM.StackLen())
	n := d.VM.StackLen()
	if n > StackDisplaySlots {
		n = StackDisplaySlots
	}
	for i := 0; i < n; i++ {
		name := ""
		if i < len(d.Proto.Locals) {
			name = "  ; local " + d.Proto.Locals[i]
		}
		d.Printf("  $%-3d = %s%s\n", i, d.VM.StackGet(i), name)
	}
	if d.VM.StackLen() > n {
		d.Printf("  ... %d more slots\n", d.VM.StackLen()-n)
	}
}

func (d *Debugger) infoGlobals() {
	names := d.VM.GlobalNames()
	sort.Strings(names)
	for _, name := range names {
		d.Printf("  %s = %s\n", name, d.VM.Global(name))
	}
}

func (d *Debugger) infoConstants() {
	for i, c := range d.Proto.Constants {
		d.Printf("  [%d] %#v\n", i, c)
	}
}

func (d *Debugger) infoBreakpoints() {
	bps := d.Breakpoints.GetAllBreakpoints()
	if len(bps) == 0 {
		d.Println("No breakpoints")
		return
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].ID < bps[j].ID })
	for _, bp := range bps {
		state := "enabled"
		if !bp.Enabled {
			state = "disabled"
		}
		extra := ""
		if bp.Condition != "" {
			extra = "  if " + bp.Condition
		}
		if bp.Temporary {
			extra += "  (temporary)"
		}
		d.Printf("  %d: bytecode %d  %s  hits=%d%s\n", bp.ID, bp.Index, state, bp.HitCount, extra)
	}
}

func (d *Debugger) infoWatchpoints() {
	wps := d.Watchpoints.GetAllWatchpoints()
	if len(wps) == 0 {
		d.Println("No watchpoints")
		return
	}
	sort.Slice(wps, func(i, j int) bool { return wps[i].ID < wps[j].ID })
	for _, wp := range wps {
		state := "enabled"
		if !wp.Enabled {
			state = "disabled"
		}
		d.Printf("  %d: %s  %s  hits=%d\n", wp.ID, wp.Expression, state, wp.HitCount)
	}
}

// cmdList shows the bytecode listing around the current PC
func (d *Debugger) cmdList(args []string) error {
	pc := d.VM.PC()
	begin := pc - ListContextBefore
	if begin < 0 {
		begin = 0
	}
	end := pc + ListContextAfter
	if end > len(d.Proto.Bytecodes) {
		end = len(d.Proto.Bytecodes)
	}

	dis := tools.NewDisassembler(tools.DefaultFormatOptions())
	for i := begin; i < end; i++ {
		marker := "   "
		if i == pc {
			marker = "=> "
		}
		d.Printf("%s%s\n", marker, dis.DisassembleLine(i, d.Proto))
	}
	return nil
}

// cmdDisasm dumps the full disassembly
func (d *Debugger) cmdDisasm(args []string) error {
	d.Output.WriteString(tools.Disassemble(d.Proto))
	return nil
}

// cmdXref dumps the constant cross-reference
func (d *Debugger) cmdXref(args []string) error {
	d.Output.WriteString(tools.FormatXref(d.Proto))
	return nil
}

// cmdSet assigns a global: set <name> <expression>
func (d *Debugger) cmdSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <global-name> <expression>")
	}

	name := args[0]
	expr := strings.Join(args[1:], " ")
	result, err := d.Evaluator.EvaluateExpression(expr, d.VM)
	if err != nil {
		return err
	}

	d.VM.SetGlobal(name, result)
	d.Printf("%s = %s\n", name, result)
	return nil
}

// cmdReset reloads the prototype, clearing stack and globals
func (d *Debugger) cmdReset(args []string) error {
	d.VM.Reset()
	d.Running = false
	d.Println("VM reset")
	return nil
}

// cmdHelp shows available commands
func (d *Debugger) cmdHelp(args []string) error {
	d.Println(`Commands:
  run, r                 Restart program execution from the first bytecode
  continue, c            Continue execution
  step, s, next, n       Execute a single bytecode
  break IDX [if EXPR]    Set breakpoint at bytecode index
  tbreak IDX             Set temporary breakpoint
  delete [ID]            Delete breakpoint (all when no ID)
  enable ID, disable ID  Toggle a breakpoint
  watch NAME | $N        Break when a global or stack slot changes
  unwatch [ID]           Delete watchpoint (all when no ID)
  print EXPR, p EXPR     Evaluate and print an expression
  info [WHAT]            stack | globals | constants | breakpoints | watchpoints
  list, l                Show bytecode around the current PC
  disasm                 Dump the full disassembly
  xref                   Dump the constant cross-reference
  set NAME EXPR          Assign a global
  reset                  Reset the VM (stack, globals, PC)
  quit, q                Exit the debugger`)
	return nil
}
