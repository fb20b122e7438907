package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lookbusy1344/lua-vm/config"
	"github.com/lookbusy1344/lua-vm/debugger"
	"github.com/lookbusy1344/lua-vm/loader"
	"github.com/lookbusy1344/lua-vm/tools"
	"github.com/lookbusy1344/lua-vm/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	// Configuration provides the flag defaults; flags win when given.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		debugMode   = flag.Bool("debug", false, "Start in debugger mode")
		tuiMode     = flag.Bool("tui", false, "Use TUI (Text User Interface) debugger")
		maxSteps    = flag.Uint64("max-steps", cfg.Execution.MaxSteps, "Maximum bytecodes to execute before halt (0 = unlimited)")
		verboseMode = flag.Bool("verbose", false, "Verbose output")

		// Compilation-only modes
		dumpBytecode = flag.Bool("dump-bytecode", false, "Disassemble the compiled program and exit")
		dumpXref     = flag.Bool("dump-xref", false, "Dump the constant cross-reference and exit")
		compileTo    = flag.String("compile", "", "Compile to a bytecode image file and exit")

		// Tracing and statistics flags
		enableTrace = flag.Bool("trace", cfg.Execution.EnableTrace, "Enable execution trace")
		traceFile   = flag.String("trace-file", "", "Trace output file (default: trace.log in log dir)")
		enableStats = flag.Bool("stats", cfg.Execution.EnableStats, "Enable performance statistics")
		statsFile   = flag.String("stats-file", "", "Statistics output file (default: stats.json in log dir)")
		statsFormat = flag.String("stats-format", cfg.Statistics.Format, "Statistics format (json, csv)")
	)

	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("lua-vm %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	// Show help
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// Require exactly one script file
	if flag.NArg() != 1 {
		printHelp()
		os.Exit(1)
	}

	scriptFile := flag.Arg(0)

	if *verboseMode {
		fmt.Printf("Compiling: %s\n", scriptFile)
	}

	proto, err := loader.Load(scriptFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *verboseMode {
		fmt.Printf("Compiled %d bytecodes, %d constants, %d locals\n",
			len(proto.Bytecodes), len(proto.Constants), len(proto.Locals))
	}

	// Compilation-only modes
	if *dumpBytecode {
		fmt.Print(tools.Disassemble(proto))
		os.Exit(0)
	}
	if *dumpXref {
		fmt.Print(tools.FormatXref(proto))
		os.Exit(0)
	}
	if *compileTo != "" {
		if err := loader.SaveImage(*compileTo, proto); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing image: %v\n", err)
			os.Exit(1)
		}
		if *verboseMode {
			fmt.Printf("Image written: %s\n", *compileTo)
		}
		os.Exit(0)
	}

	// Create VM instance
	machine := vm.NewVM()
	machine.MaxSteps = *maxSteps

	// Setup tracing and statistics
	var traceWriter *os.File
	if *enableTrace {
		tracePath := *traceFile
		if tracePath == "" {
			tracePath = filepath.Join(config.GetLogPath(), cfg.Trace.OutputFile)
		}

		traceWriter, err = os.Create(tracePath) // #nosec G304 -- user-specified trace output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := traceWriter.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close trace file: %v\n", err)
			}
		}()

		machine.ExecutionTrace = vm.NewExecutionTrace(traceWriter)
		machine.ExecutionTrace.IncludeTiming = cfg.Trace.IncludeTiming
		if cfg.Trace.MaxEntries > 0 {
			machine.ExecutionTrace.MaxEntries = cfg.Trace.MaxEntries
		}
		machine.ExecutionTrace.Start()

		if *verboseMode {
			fmt.Printf("Execution trace enabled: %s\n", tracePath)
		}
	}

	if *enableStats {
		machine.Statistics = vm.NewPerformanceStatistics()
		machine.Statistics.Start()

		if *verboseMode {
			fmt.Println("Performance statistics enabled")
		}
	}

	// Run in appropriate mode
	if *debugMode || *tuiMode {
		dbg := debugger.NewDebugger(machine, proto)
		if cfg.Debugger.HistorySize > 0 {
			dbg.History.SetMaxSize(cfg.Debugger.HistorySize)
		}

		if *tuiMode {
			if err := debugger.RunTUI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Println("lua-vm debugger - Type 'help' for commands")
			fmt.Printf("Program loaded: %s\n", scriptFile)
			fmt.Println()

			if err := debugger.RunCLI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "Debugger error: %v\n", err)
				os.Exit(1)
			}
		}
	} else {
		// Direct execution mode
		if *verboseMode {
			fmt.Println("\nStarting execution...")
			fmt.Println("----------------------------------------")
		}

		if err := machine.Execute(proto); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

		if *verboseMode {
			fmt.Println("\n----------------------------------------")
			fmt.Println("Execution complete")
			fmt.Printf("Bytecodes executed: %d\n", machine.Steps())
		}

		// Flush traces and export statistics
		if machine.ExecutionTrace != nil {
			if err := machine.ExecutionTrace.Flush(); err != nil {
				fmt.Fprintf(os.Stderr, "Error flushing execution trace: %v\n", err)
			}
			if *verboseMode {
				fmt.Printf("Execution trace written (%d entries)\n", len(machine.ExecutionTrace.GetEntries()))
			}
		}

		if machine.Statistics != nil {
			statPath := *statsFile
			if statPath == "" {
				name := cfg.Statistics.OutputFile
				if *statsFormat == "csv" {
					name = "stats.csv"
				}
				statPath = filepath.Join(config.GetLogPath(), name)
			}

			statsWriter, err := os.Create(statPath) // #nosec G304 -- user-specified stats output path
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating statistics file: %v\n", err)
			} else {
				defer func() {
					if err := statsWriter.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close statistics file: %v\n", err)
					}
				}()

				switch *statsFormat {
				case "csv":
					err = machine.Statistics.ExportCSV(statsWriter)
				default:
					err = machine.Statistics.ExportJSON(statsWriter)
				}

				if err != nil {
					fmt.Fprintf(os.Stderr, "Error exporting statistics: %v\n", err)
				} else if *verboseMode {
					fmt.Printf("Statistics exported: %s\n", statPath)
				}
			}

			if *verboseMode {
				fmt.Println()
				fmt.Println(machine.Statistics.String())
			}
		}
	}
}

func printHelp() {
	fmt.Printf(`lua-vm %s

Usage: lua-vm [options] <script-file>

A script file is compiled and executed; a bytecode image file (produced
with -compile) is decoded and executed directly.

Options:
  -help              Show this help message
  -version           Show version information
  -debug             Start in debugger mode (CLI)
  -tui               Start in TUI debugger mode
  -max-steps N       Maximum bytecodes to execute (default: 1000000, 0 = unlimited)
  -verbose           Enable verbose output

Compilation Options:
  -dump-bytecode     Disassemble the compiled program and exit
  -dump-xref         Dump the constant cross-reference and exit
  -compile FILE      Write a bytecode image to FILE and exit

Tracing & Performance Options:
  -trace             Enable execution trace
  -trace-file FILE   Trace output file (default: trace.log in log dir)
  -stats             Enable performance statistics
  -stats-file FILE   Statistics output file (default: stats.json in log dir)
  -stats-format FMT  Statistics format: json, csv (default: json)

Examples:
  # Run a script
  lua-vm examples/hello.lua

  # Inspect the generated bytecode
  lua-vm -dump-bytecode examples/hello.lua

  # Precompile and run the image
  lua-vm -compile hello.lvbc examples/hello.lua
  lua-vm hello.lvbc

  # Run with the debugger
  lua-vm -debug examples/tables.lua

  # Run with the TUI debugger
  lua-vm -tui examples/tables.lua

  # Run with execution trace and statistics
  lua-vm -trace -stats -verbose examples/tables.lua

Debugger Commands (when in -debug mode):
  run, r             Restart program execution
  continue, c        Continue execution
  step, s            Execute single bytecode
  break IDX          Set breakpoint at bytecode index
  watch NAME         Break when a global changes
  info stack         Show the register stack
  print EXPR         Evaluate and print expression
  help               Show debugger help

For more information, see the README.md file.
`, Version)
}
