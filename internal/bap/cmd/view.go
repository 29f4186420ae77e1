package cmd

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/karatemonkey63/bap-1/internal/bap/log"
	"github.com/karatemonkey63/bap-1/internal/bap/styles"
	"github.com/karatemonkey63/bap-1/internal/disasm"
	"github.com/karatemonkey63/bap-1/internal/image"
	"github.com/karatemonkey63/bap-1/internal/options"
	"github.com/karatemonkey63/bap-1/internal/symbols"
	"github.com/karatemonkey63/bap-1/internal/ui/colorize"
)

type viewMode int

const (
	viewInfo viewMode = iota
	viewSymbols
	viewDisasm
)

type symbolItem struct {
	va         uint64
	size       uint64
	original   string
	demangled  string
	filterTerm string // Pre-computed filter value
}

func (i symbolItem) Title() string {
	// This is used for filtering - return plain text
	return fmt.Sprintf("%x  %s", i.va, i.demangled)
}

func (i symbolItem) Description() string { return "" }

func (i symbolItem) FilterValue() string {
	// Return the pre-computed filter term
	return i.filterTerm
}

// Custom item delegate for the symbols list
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}

	var addrStyle lipgloss.Style
	var indicator string

	if index == m.Index() {
		indicator = ">"
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")) // Purple for selected address
	} else {
		indicator = " "
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // Gray for normal address
	}

	str := fmt.Sprintf(" %s  %s  %s",
		indicator,
		addrStyle.Render(fmt.Sprintf("%x", i.va)),
		colorizeSignature(i.demangled))

	fmt.Fprint(w, str)
}

// colorizeSignature applies syntax highlighting to demangled function
// signatures: namespaces gray, the name itself orange, parameters plain.
func colorizeSignature(sig string) string {
	funcStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange for function names
	nsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))   // Light gray for namespaces

	params := ""
	if parenIdx := strings.Index(sig, "("); parenIdx != -1 {
		params = sig[parenIdx:]
		sig = sig[:parenIdx]
	}

	if strings.Contains(sig, "::") {
		parts := strings.Split(sig, "::")
		var result []string
		for i, part := range parts {
			if i < len(parts)-1 {
				result = append(result, nsStyle.Render(part))
			} else {
				result = append(result, funcStyle.Render(part))
			}
		}
		return strings.Join(result, nsStyle.Render("::")) + params
	}
	return funcStyle.Render(sig) + params
}

type model struct {
	viewport    viewport.Model
	symbolsList list.Model
	disasmView  viewport.Model
	spinner     spinner.Model

	mode viewMode
	opts *options.Options

	digest   string
	fileType string
	img      *image.Image
	arch     string
	syms     []symbols.Symbol

	loadingSymbols bool
	loadingDigest  bool
	width          int
	height         int
}

// Message types
type digestCalculatedMsg struct {
	digest string
}

type fileTypeMsg struct {
	fileType string
}

type symbolsMsg struct {
	img  *image.Image
	arch string
	syms []symbols.Symbol
	err  error
}

// Commands
func calculateDigestCmd(path string) tea.Cmd {
	return func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return digestCalculatedMsg{digest: fmt.Sprintf("error: %v", err)}
		}
		defer file.Close()

		hash := sha256.New()
		if _, err := io.Copy(hash, file); err != nil {
			return digestCalculatedMsg{digest: fmt.Sprintf("error: %v", err)}
		}

		return digestCalculatedMsg{digest: fmt.Sprintf("%x", hash.Sum(nil))}
	}
}

func getFileTypeCmd(path string) tea.Cmd {
	return func() tea.Msg {
		cmd := exec.Command("file", "-b", path)
		output, err := cmd.Output()
		if err != nil {
			return fileTypeMsg{fileType: "unknown"}
		}
		return fileTypeMsg{fileType: strings.TrimSpace(string(output))}
	}
}

func loadSymbolsCmd(opts *options.Options) tea.Cmd {
	return func() tea.Msg {
		img, err := image.Load(opts.Filename, opts.Loader)
		if err != nil {
			return symbolsMsg{err: err}
		}

		arch := img.Arch
		if opts.Binary != "" {
			arch = opts.Binary
		}

		// The browser always shows demangled names; the flag can still
		// point it at an external filter.
		vopts := *opts
		if vopts.Demangle == nil {
			vopts.Demangle = &options.Demangle{}
		}

		syms, err := recoverSymbols(img, arch, &vopts)
		if err != nil {
			img.Close()
			return symbolsMsg{err: err}
		}
		return symbolsMsg{img: img, arch: arch, syms: syms}
	}
}

func NewModel(opts *options.Options) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	symbolsList := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	symbolsList.SetShowStatusBar(false)
	symbolsList.SetFilteringEnabled(true)
	symbolsList.Title = "Symbols"
	symbolsList.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)
	symbolsList.SetShowHelp(true)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	dvp := viewport.New()
	dvp.SetWidth(80)
	dvp.SetHeight(24)

	m := model{
		viewport:       vp,
		symbolsList:    symbolsList,
		disasmView:     dvp,
		spinner:        s,
		mode:           viewInfo,
		opts:           opts,
		loadingSymbols: true,
		loadingDigest:  true,
		width:          80,
		height:         24,
	}

	m.updateContent()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		calculateDigestCmd(m.opts.Filename),
		getFileTypeCmd(m.opts.Filename),
		loadSymbolsCmd(m.opts),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case digestCalculatedMsg:
		m.digest = msg.digest
		m.loadingDigest = false
		m.updateContent()
		return m, nil

	case fileTypeMsg:
		m.fileType = msg.fileType
		m.updateContent()
		return m, nil

	case symbolsMsg:
		if msg.err != nil {
			slog.Error("symbol recovery failed", "error", msg.err)
		} else {
			m.img = msg.img
			m.arch = msg.arch
			m.syms = msg.syms
			m.updateSymbolsList()
		}
		m.loadingSymbols = false
		m.updateContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loadingDigest || m.loadingSymbols {
			m.updateContent()
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.symbolsList.SetWidth(msg.Width)
			m.symbolsList.SetHeight(msg.Height - 2)
			m.disasmView.SetWidth(msg.Width)
			m.disasmView.SetHeight(msg.Height - 2)

			m.updateContent()
		}

	case tea.KeyMsg:
		// While the list is filtering it owns most keys.
		if m.mode == viewSymbols && m.symbolsList.FilterState() == list.Filtering {
			switch msg.String() {
			case "q", "ctrl+c":
				if m.img != nil {
					m.img.Close()
				}
				return m, tea.Quit
			}
		} else {
			switch msg.String() {
			case "q", "ctrl+c":
				if m.img != nil {
					m.img.Close()
				}
				return m, tea.Quit
			case "i":
				m.mode = viewInfo
				return m, nil
			case "s":
				if len(m.syms) > 0 {
					m.mode = viewSymbols
				}
				return m, nil
			case "enter":
				if m.mode == viewSymbols {
					if selected := m.symbolsList.SelectedItem(); selected != nil {
						if item, ok := selected.(symbolItem); ok && m.img != nil {
							m.disasmView.SetContent(m.renderDisasm(item))
							m.disasmView.GotoTop()
							m.mode = viewDisasm
						}
					}
				}
				return m, nil
			case "tab":
				switch m.mode {
				case viewInfo:
					if len(m.syms) > 0 {
						m.mode = viewSymbols
					}
				case viewSymbols:
					m.mode = viewDisasm
				case viewDisasm:
					m.mode = viewInfo
				}
				return m, nil
			case "shift+tab":
				switch m.mode {
				case viewInfo:
					m.mode = viewDisasm
				case viewSymbols:
					m.mode = viewInfo
				case viewDisasm:
					if len(m.syms) > 0 {
						m.mode = viewSymbols
					}
				}
				return m, nil
			}
		}
	}

	switch m.mode {
	case viewSymbols:
		m.symbolsList, cmd = m.symbolsList.Update(msg)
	case viewDisasm:
		m.disasmView, cmd = m.disasmView.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	var content string
	switch m.mode {
	case viewSymbols:
		content = m.symbolsList.View()
	case viewDisasm:
		content = m.disasmView.View()
	default:
		content = m.viewport.View()
	}

	var menu string
	switch m.mode {
	case viewSymbols:
		menu = " Enter: disassemble • I: info • Tab: cycle • Q: quit "
	case viewDisasm:
		menu = " S: symbols • I: info • Tab: cycle • Q: quit "
	default:
		if len(m.syms) > 0 {
			menu = " S: symbols • Tab: cycle • Q: quit "
		} else {
			menu = " Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

func (m *model) updateContent() {
	relPath := m.opts.Filename
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, m.opts.Filename); err == nil {
			relPath = rel
		}
	}

	var lines []string
	dir := filepath.Dir(relPath)
	base := filepath.Base(relPath)

	if dir != "." {
		lines = append(lines, fmt.Sprintf("; %s/", dir))
	}
	lines = append(lines, fmt.Sprintf("; %s", base))

	if m.digest != "" {
		lines = append(lines, fmt.Sprintf("; %s", m.digest))
	}

	lines = append(lines, "")

	if m.fileType != "" {
		lines = append(lines, fmt.Sprintf("; %s", m.fileType))
	}
	if m.img != nil {
		lines = append(lines, fmt.Sprintf("; %s, entry %#x", m.arch, m.img.Entry))
		lines = append(lines, fmt.Sprintf("; %d symbols", len(m.syms)))
	}

	markdown := fmt.Sprintf("# Bap\n\n```\n%s\n```", strings.Join(lines, "\n"))

	if m.loadingSymbols {
		markdown += fmt.Sprintf("\n\n%s Recovering symbols...", m.spinner.View())
	}
	if m.loadingDigest && m.digest == "" {
		markdown += fmt.Sprintf("\n\n%s Calculating digest...", m.spinner.View())
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	renderer := styles.GetMarkdownRenderer(width - 2)
	rendered, _ := renderer.Render(markdown)
	m.viewport.SetContent(strings.TrimSuffix(rendered, "\n"))
}

func (m *model) updateSymbolsList() {
	items := make([]list.Item, 0, len(m.syms))
	for _, s := range m.syms {
		demangled := s.Demangled
		if demangled == "" {
			demangled = s.Name
		}
		items = append(items, symbolItem{
			va:         s.VA,
			size:       s.Size,
			original:   s.Name,
			demangled:  demangled,
			filterTerm: fmt.Sprintf("%x %s", s.VA, demangled),
		})
	}

	m.symbolsList.SetItems(items)
	m.symbolsList.Title = fmt.Sprintf("Symbols (%d total)", len(m.syms))
}

// renderDisasm produces the colorized body of one function for the
// disassembly pane.
func (m *model) renderDisasm(item symbolItem) string {
	dec, err := disasm.New(m.arch)
	if err != nil {
		return fmt.Sprintf("cannot disassemble: %v", err)
	}
	body, err := disasm.Function(dec, m.img, item.va, item.size)
	if err != nil {
		return fmt.Sprintf("cannot disassemble %s: %v", item.demangled, err)
	}

	var sb strings.Builder
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	sb.WriteString(header.Render(item.demangled))
	sb.WriteString("\n")
	if item.original != item.demangled {
		sb.WriteString(fmt.Sprintf("mangled: %s\n", item.original))
	}
	sb.WriteString(fmt.Sprintf("address: %#x\n", item.va))
	if calls := formatCallTargets(body, m.syms); calls != "" {
		sb.WriteString("calls: " + calls + "\n")
	}
	sb.WriteString("\n")

	for _, inst := range body {
		line := fmt.Sprintf("%x: %s", inst.VA, inst.Text)
		sb.WriteString(" " + colorize.ColorizeInstructionLine(line, m.arch) + "\n")
	}
	return sb.String()
}

// formatCallTargets names the static call destinations of a function
// body, falling back to the raw address for unnamed targets.
func formatCallTargets(body disasm.Stream, syms []symbols.Symbol) string {
	targets := disasm.CallTargets(body)
	if len(targets) == 0 {
		return ""
	}
	name := symbols.Lookup(syms)
	parts := make([]string, 0, len(targets))
	for _, va := range targets {
		if n := name(va); n != "" {
			parts = append(parts, n)
		} else {
			parts = append(parts, fmt.Sprintf("%#x", va))
		}
	}
	return strings.Join(parts, ", ")
}

var viewCmd = &cobra.Command{
	Use:   "view [file]",
	Short: "Browse a binary interactively",
	Long: `View opens an interactive browser over the recovered symbol table.
Symbols can be filtered and disassembled in place.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options.FromFlags(cmd.Flags(), args)
		if err != nil {
			return err
		}
		log.Setup(opts.Verbose)

		program := tea.NewProgram(
			NewModel(opts),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	},
}

func init() {
	options.Register(viewCmd.Flags())
	rootCmd.AddCommand(viewCmd)
}
