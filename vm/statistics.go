package vm

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/lookbusy1344/lua-vm/compiler"
)

// OpcodeStats tracks statistics for a single opcode
type OpcodeStats struct {
	Mnemonic string
	Count    uint64
}

// CallStats tracks statistics for a called function
type CallStats struct {
	Name      string
	CallCount uint64
}

// PerformanceStatistics tracks execution statistics
type PerformanceStatistics struct {
	Enabled bool

	// Execution metrics
	TotalBytecodes  uint64
	ExecutionTime   time.Duration
	BytecodesPerSec float64

	// Opcode breakdown
	OpcodeCounts map[string]uint64 // mnemonic -> count

	// Access pattern breakdown
	GlobalReads  uint64
	GlobalWrites uint64
	TableReads   uint64
	TableWrites  uint64
	CallCount    uint64

	// Function call tracking
	FunctionCalls map[string]*CallStats // name -> stats

	// Internal
	startTime  time.Time
	trackCalls bool
}

// NewPerformanceStatistics creates a new statistics tracker
func NewPerformanceStatistics() *PerformanceStatistics {
	return &PerformanceStatistics{
		Enabled:       true,
		OpcodeCounts:  make(map[string]uint64),
		FunctionCalls: make(map[string]*CallStats),
		trackCalls:    true,
	}
}

// Start starts statistics collection
func (s *PerformanceStatistics) Start() {
	s.startTime = time.Now()
	s.TotalBytecodes = 0
	s.OpcodeCounts = make(map[string]uint64)
	s.GlobalReads = 0
	s.GlobalWrites = 0
	s.TableReads = 0
	s.TableWrites = 0
	s.CallCount = 0
	s.FunctionCalls = make(map[string]*CallStats)
}

// RecordInstruction records an executed bytecode
func (s *PerformanceStatistics) RecordInstruction(op compiler.Op) {
	if !s.Enabled {
		return
	}

	s.TotalBytecodes++
	s.OpcodeCounts[op.String()]++

	switch op {
	case compiler.OpGetGlobal:
		s.GlobalReads++
	case compiler.OpSetGlobal, compiler.OpSetGlobalConst:
		s.GlobalWrites++
	case compiler.OpGetInt, compiler.OpGetField, compiler.OpGetTable:
		s.TableReads++
	case compiler.OpSetInt, compiler.OpSetIntConst, compiler.OpSetField,
		compiler.OpSetFieldConst, compiler.OpSetTable, compiler.OpSetTableConst,
		compiler.OpSetList:
		s.TableWrites++
	case compiler.OpCall:
		s.CallCount++
	}
}

// RecordCall records a call to a named native function
func (s *PerformanceStatistics) RecordCall(name string) {
	if !s.Enabled || !s.trackCalls {
		return
	}

	if stats, exists := s.FunctionCalls[name]; exists {
		stats.CallCount++
	} else {
		s.FunctionCalls[name] = &CallStats{Name: name, CallCount: 1}
	}
}

// Finalize finalizes statistics collection
func (s *PerformanceStatistics) Finalize() {
	s.ExecutionTime = time.Since(s.startTime)
	if s.ExecutionTime.Seconds() > 0 {
		s.BytecodesPerSec = float64(s.TotalBytecodes) / s.ExecutionTime.Seconds()
	}
}

// GetTopOpcodes returns the most frequently executed opcodes
func (s *PerformanceStatistics) GetTopOpcodes(n int) []OpcodeStats {
	stats := make([]OpcodeStats, 0, len(s.OpcodeCounts))
	for mnemonic, count := range s.OpcodeCounts {
		stats = append(stats, OpcodeStats{Mnemonic: mnemonic, Count: count})
	}

	// Sort by count descending, name ascending for ties
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Mnemonic < stats[j].Mnemonic
	})

	if n > 0 && n < len(stats) {
		return stats[:n]
	}
	return stats
}

// GetTopFunctions returns the most frequently called functions
func (s *PerformanceStatistics) GetTopFunctions(n int) []*CallStats {
	functions := make([]*CallStats, 0, len(s.FunctionCalls))
	for _, stats := range s.FunctionCalls {
		functions = append(functions, stats)
	}

	sort.Slice(functions, func(i, j int) bool {
		if functions[i].CallCount != functions[j].CallCount {
			return functions[i].CallCount > functions[j].CallCount
		}
		return functions[i].Name < functions[j].Name
	})

	if n > 0 && n < len(functions) {
		return functions[:n]
	}
	return functions
}

// ExportJSON exports statistics as JSON
func (s *PerformanceStatistics) ExportJSON(w io.Writer) error {
	s.Finalize()

	data := map[string]interface{}{
		"total_bytecodes":   s.TotalBytecodes,
		"execution_time_ms": s.ExecutionTime.Milliseconds(),
		"bytecodes_per_sec": s.BytecodesPerSec,
		"global_reads":      s.GlobalReads,
		"global_writes":     s.GlobalWrites,
		"table_reads":       s.TableReads,
		"table_writes":      s.TableWrites,
		"call_count":        s.CallCount,
		"top_opcodes":       s.GetTopOpcodes(20),
		"top_functions":     s.GetTopFunctions(20),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV exports statistics as CSV
func (s *PerformanceStatistics) ExportCSV(w io.Writer) error {
	s.Finalize()

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Metric", "Value"}
	if err := writer.Write(header); err != nil {
		return err
	}

	rows := [][]string{
		{"Total Bytecodes", fmt.Sprintf("%d", s.TotalBytecodes)},
		{"Execution Time (ms)", fmt.Sprintf("%d", s.ExecutionTime.Milliseconds())},
		{"Bytecodes/Sec", fmt.Sprintf("%.2f", s.BytecodesPerSec)},
		{"Global Reads", fmt.Sprintf("%d", s.GlobalReads)},
		{"Global Writes", fmt.Sprintf("%d", s.GlobalWrites)},
		{"Table Reads", fmt.Sprintf("%d", s.TableReads)},
		{"Table Writes", fmt.Sprintf("%d", s.TableWrites)},
		{"Calls", fmt.Sprintf("%d", s.CallCount)},
	}

	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Write([]string{})

	writer.Write([]string{"Opcode", "Count"})
	for _, stat := range s.GetTopOpcodes(0) {
		if err := writer.Write([]string{stat.Mnemonic, fmt.Sprintf("%d", stat.Count)}); err != nil {
			return err
		}
	}

	return nil
}

// String returns a formatted string representation
func (s *PerformanceStatistics) String() string {
	s.Finalize()

	var sb strings.Builder

	sb.WriteString("Performance Statistics\n")
	sb.WriteString("======================\n\n")

	sb.WriteString(fmt.Sprintf("Total Bytecodes:  %d\n", s.TotalBytecodes))
	sb.WriteString(fmt.Sprintf("Execution Time:   %v\n", s.ExecutionTime))
	sb.WriteString(fmt.Sprintf("Bytecodes/Sec:    %.2f\n\n", s.BytecodesPerSec))

	sb.WriteString(fmt.Sprintf("Global Reads:     %d\n", s.GlobalReads))
	sb.WriteString(fmt.Sprintf("Global Writes:    %d\n", s.GlobalWrites))
	sb.WriteString(fmt.Sprintf("Table Reads:      %d\n", s.TableReads))
	sb.WriteString(fmt.Sprintf("Table Writes:     %d\n", s.TableWrites))
	sb.WriteString(fmt.Sprintf("Calls:            %d\n\n", s.CallCount))

	sb.WriteString("Top Opcodes:\n")
	for i, stat := range s.GetTopOpcodes(10) {
		percentage := float64(stat.Count) / float64(s.TotalBytecodes) * 100
		sb.WriteString(fmt.Sprintf("  %2d. %-14s %8d (%.1f%%)\n", i+1, stat.Mnemonic, stat.Count, percentage))
	}

	return sb.String()
}
