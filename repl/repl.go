// Package repl implements the interactive command loop driving a vm.VM:
// single-character commands for stepping, running, breakpoints,
// register inspection, and memory dumps, read from any io.Reader and
// echoed to any io.Writer.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/legv8toolkit/legv8/register"
	"github.com/legv8toolkit/legv8/vm"
)

// Run drives m from in, printing prompts and command output to out,
// until a quit command or an end-of-input condition on in.
func Run(m *vm.VM, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "(legv8) ")

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg := line[0], strings.TrimSpace(line[1:])

		if cmd == 'q' {
			fmt.Fprintln(out, "Exiting.")
			break
		}

		if err := dispatch(m, cmd, arg, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("repl: input error: %w", err)
	}
	return nil
}

func dispatch(m *vm.VM, cmd byte, arg string, out io.Writer) error {
	switch cmd {
	case 'r':
		n := 1
		if arg != "" {
			var err error
			n, err = strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("repl: bad run count %q", arg)
			}
		}
		for i := 0; i < n; i++ {
			if err := runOnce(m, out); err != nil {
				return err
			}
		}
		return nil

	case 's':
		n := 1
		if arg != "" {
			var err error
			n, err = strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("repl: bad step count %q", arg)
			}
		}
		for i := 0; i < n; i++ {
			if err := stepOnce(m, out); err != nil {
				return err
			}
		}
		return nil

	case 'b':
		line, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("repl: bad breakpoint line %q", arg)
		}
		return m.AddBreakpoint(line)

	case 'p':
		reg, ok := register.Parse(arg)
		if !ok {
			return fmt.Errorf("repl: unknown register %q", arg)
		}
		fmt.Fprintln(out, m.PrintRegister(reg))
		return nil

	case 'd':
		fmt.Fprint(out, m.Dump())
		return nil

	default:
		fmt.Fprintln(out, "Unknown command")
		return nil
	}
}

func runOnce(m *vm.VM, out io.Writer) error {
	err := m.Run()
	switch {
	case errors.Is(err, vm.ErrProgramEnded):
		fmt.Fprintln(out, "Program ended.")
		return nil
	case errors.Is(err, vm.ErrBreakpoint):
		fmt.Fprintf(out, "Stopped at breakpoint, PC=%d\n", m.PC)
		return nil
	case err != nil:
		var fault *vm.Fault
		if errors.As(err, &fault) {
			fmt.Fprintf(out, "Fault: %s\n", fault.Error())
			return nil
		}
		return err
	}
	return nil
}

func stepOnce(m *vm.VM, out io.Writer) error {
	err := m.Step()
	switch {
	case errors.Is(err, vm.ErrProgramEnded):
		fmt.Fprintln(out, "Program ended.")
		return nil
	case errors.Is(err, vm.ErrBreakpoint):
		fmt.Fprintf(out, "Stopped at breakpoint, PC=%d\n", m.PC)
		return nil
	case err != nil:
		var fault *vm.Fault
		if errors.As(err, &fault) {
			fmt.Fprintf(out, "Fault: %s\n", fault.Error())
			return nil
		}
		return err
	}
	return nil
}
