package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/legv8toolkit/legv8/assembler"
	"github.com/legv8toolkit/legv8/config"
	"github.com/legv8toolkit/legv8/disassembler"
	"github.com/legv8toolkit/legv8/opcode"
	"github.com/legv8toolkit/legv8/repl"
	"github.com/legv8toolkit/legv8/token"
	"github.com/legv8toolkit/legv8/trace"
	"github.com/legv8toolkit/legv8/vm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "legv8",
		Short: "Assembler, disassembler, and debugger for the LEGv8 teaching subset of ARMv8-A",
	}

	var littleEndian bool

	assembleCmd := &cobra.Command{
		Use:   "assemble <source-file>",
		Short: "Assemble a LEGv8 source file to a flat binary of machine words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(args[0], littleEndian)
		},
	}
	assembleCmd.Flags().BoolVar(&littleEndian, "little-endian", false, "write words little-endian instead of the default big-endian")

	disassembleCmd := &cobra.Command{
		Use:   "disassemble <binary-file>",
		Short: "Disassemble a flat binary of machine words to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisassemble(args[0], littleEndian)
		},
	}
	disassembleCmd.Flags().BoolVar(&littleEndian, "little-endian", false, "read words as little-endian instead of the default big-endian")

	var useTUI, wantTrace, wantRegTrace, wantFlagTrace, wantStats bool
	debugCmd := &cobra.Command{
		Use:   "debug <source-file>",
		Short: "Assemble a source file and enter the interactive debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebug(args[0], debugOptions{
				tui:        useTUI,
				trace:      wantTrace,
				regTrace:   wantRegTrace,
				flagTrace:  wantFlagTrace,
				statistics: wantStats,
			})
		},
	}
	debugCmd.Flags().BoolVar(&useTUI, "tui", false, "use the full-screen text interface instead of the line-based one")
	debugCmd.Flags().BoolVar(&wantTrace, "trace", false, "record every retired instruction and flush it to the configured trace file on quit")
	debugCmd.Flags().BoolVar(&wantRegTrace, "register-trace", false, "record every register write and print a summary on quit")
	debugCmd.Flags().BoolVar(&wantFlagTrace, "flag-trace", false, "record every flag-word change and flush it to the configured trace file name plus .flags on quit")
	debugCmd.Flags().BoolVar(&wantStats, "stats", false, "count retired instructions by mnemonic and flush a report to the configured statistics file on quit")

	rootCmd.AddCommand(assembleCmd, disassembleCmd, debugCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAssemble(path string, littleEndian bool) error {
	src, err := os.ReadFile(path) // #nosec G304 -- CLI-supplied source path
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}

	toks, err := token.Tokenize(string(src))
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	prog, err := assembler.Assemble(toks)
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}

	out := path + ".machine"
	f, err := os.Create(out) // #nosec G304 -- derived from CLI-supplied source path
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	defer f.Close()

	order := binary.ByteOrder(binary.BigEndian)
	if littleEndian {
		order = binary.LittleEndian
	}
	buf := make([]byte, 4*len(prog.Code))
	for i, op := range prog.Code {
		order.PutUint32(buf[i*4:], uint32(op))
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("legv8: %w", err)
	}

	fmt.Printf("Wrote %d words to %s\n", len(prog.Code), out)
	return nil
}

func runDisassemble(path string, littleEndian bool) error {
	data, err := os.ReadFile(path) // #nosec G304 -- CLI-supplied binary path
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	if len(data)%4 != 0 {
		return fmt.Errorf("legv8: %s is %d bytes, not a multiple of 4", path, len(data))
	}

	order := binary.ByteOrder(binary.BigEndian)
	if littleEndian {
		order = binary.LittleEndian
	}
	code := make([]opcode.Opcode, len(data)/4)
	for i := range code {
		code[i] = opcode.Opcode(order.Uint32(data[i*4:]))
	}

	for _, line := range disassembler.Disassemble(code) {
		fmt.Println(line)
	}
	return nil
}

type debugOptions struct {
	tui                                    bool
	trace, regTrace, flagTrace, statistics bool
}

func runDebug(path string, opts debugOptions) error {
	src, err := os.ReadFile(path) // #nosec G304 -- CLI-supplied source path
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}

	toks, err := token.Tokenize(string(src))
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	prog, err := assembler.Assemble(toks)
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}

	m := vm.New()
	m.LoadProgram(prog)

	var exec *trace.Execution
	var regs *trace.Registers
	var flags *trace.Flags
	var stats *trace.Statistics

	if opts.trace {
		exec = trace.NewExecution()
		m.Trace = exec
	}
	if opts.regTrace {
		regs = trace.NewRegisters()
		m.RegTrace = regs
	}
	if opts.flagTrace {
		flags = trace.NewFlags()
		m.FlagTrace = flags
	}
	if opts.statistics {
		stats = trace.NewStatistics()
		m.Stats = stats
	}

	var runErr error
	if opts.tui {
		runErr = repl.NewTUI(m).Run()
	} else {
		runErr = repl.Run(m, os.Stdin, os.Stdout)
	}

	if exec != nil {
		if err := flushToFile(cfg.Trace.OutputFile, exec.Flush); err != nil {
			return err
		}
	}
	if flags != nil {
		if err := flushToFile(cfg.Trace.OutputFile+".flags", flags.Flush); err != nil {
			return err
		}
	}
	if regs != nil {
		fmt.Println(regs.Summary())
	}
	if stats != nil {
		if err := writeFile(cfg.Statistics.OutputFile, stats.Report(cfg.Statistics.Format)); err != nil {
			return err
		}
	}

	return runErr
}

func flushToFile(path string, flush func(w io.Writer) error) error {
	f, err := os.Create(path) // #nosec G304 -- config-supplied output path
	if err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	defer f.Close()
	if err := flush(f); err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	return nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("legv8: %w", err)
	}
	return nil
}
