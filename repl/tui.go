package repl

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/legv8toolkit/legv8/register"
	"github.com/legv8toolkit/legv8/vm"
)

// TUI is the tview-backed alternative to Run: a scrolling output log, a
// live register panel, and a single command input, wired to the same
// single-character command set dispatch implements.
type TUI struct {
	VM *vm.VM

	app      *tview.Application
	output   *tview.TextView
	registers *tview.TextView
	input    *tview.InputField
}

// NewTUI builds a TUI over m. Call Run to start the event loop.
func NewTUI(m *vm.VM) *TUI {
	t := &TUI{
		VM:  m,
		app: tview.NewApplication(),
	}

	t.output = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetWrap(true)
	t.output.SetBorder(true).SetTitle(" Output ")

	t.registers = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true)
	t.registers.SetBorder(true).SetTitle(" Registers ")

	t.input = tview.NewInputField().
		SetLabel("(legv8) ")
	t.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		t.handleLine(t.input.GetText())
		t.input.SetText("")
	})

	t.refreshRegisters()

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.output, 0, 3, false).
		AddItem(t.input, 1, 0, true)

	root := tview.NewFlex().
		AddItem(left, 0, 3, true).
		AddItem(t.registers, 0, 1, false)

	t.app.SetRoot(root, true).SetFocus(t.input)
	return t
}

// Run starts the TUI's event loop; it returns when the user quits.
func (t *TUI) Run() error {
	return t.app.Run()
}

func (t *TUI) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if line[0] == 'q' {
		t.app.Stop()
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(legv8) %s\n", line)
	if err := dispatch(t.VM, line[0], strings.TrimSpace(line[1:]), &b); err != nil {
		fmt.Fprintf(&b, "Error: %v\n", err)
	}

	fmt.Fprint(t.output, b.String())
	t.refreshRegisters()
}

func (t *TUI) refreshRegisters() {
	var b strings.Builder
	for i := 0; i < register.Count; i++ {
		r := register.Register(i)
		fmt.Fprintln(&b, t.VM.PrintRegister(r))
	}
	t.registers.SetText(b.String())
}
