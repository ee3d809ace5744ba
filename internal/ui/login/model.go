package login

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailterm/internal/credential"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/theme"
)

// Mode represents the current state of the login view.
type Mode int

const (
	ModeForm           Mode = iota // Editing account fields
	ModeValidating                 // Testing connection
	ModeValidateResult             // Show validation failure
)

const validateTimeout = 30 * time.Second

// Validator tests a connection with the given settings and returns the
// authenticated identity.
type Validator func(ctx context.Context, account model.AccountConfig, password string) (string, error)

// LoginDoneMsg signals the account was validated and saved.
type LoginDoneMsg struct {
	Account  model.AccountConfig
	Password string
}

// LoginCancelledMsg signals the user left the login view without saving.
type LoginCancelledMsg struct{}

// validatedMsg carries the result of a validate-and-save attempt.
type validatedMsg struct {
	account  model.AccountConfig
	password string
	name     string
	err      error
}

// Model is the account setup view.
type Model struct {
	mode Mode
	form *huh.Form

	cfg        *model.AppConfig
	configPath string
	creds      *credential.Store
	validate   Validator

	// Form field values (huh binds to these)
	formIMAPHost string
	formIMAPPort string
	formSMTPHost string
	formSMTPPort string
	formUsername string
	formPassword string
	formArchive  string
	formTLS      bool

	validError error
	spinner    spinner.Model

	width, height int
}

// New creates a login view prefilled from cfg.
func New(cfg *model.AppConfig, configPath string, creds *credential.Store, validate Validator, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		cfg:        cfg,
		configPath: configPath,
		creds:      creds,
		validate:   validate,
		spinner:    sp,
		width:      width,
		height:     height,
	}
	m.resetFormFields()
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Mode returns the current view state.
func (m Model) Mode() Mode {
	return m.mode
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case validatedMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		if msg.err != nil {
			m.validError = msg.err
			m.mode = ModeValidateResult
			return m, nil
		}
		done := LoginDoneMsg{Account: msg.account, Password: msg.password}
		return m, func() tea.Msg { return done }

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			// Only allow escape during validation
			if msg.String() == "esc" {
				m.mode = ModeForm
				m.form = m.buildForm()
				return m, m.form.Init()
			}
			return m, nil
		case ModeValidateResult:
			switch msg.String() {
			case "r":
				return m.submit()
			case "enter", "esc":
				m.mode = ModeForm
				m.form = m.buildForm()
				return m, m.form.Init()
			}
			return m, nil
		}
	}

	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submit()
	case huh.StateAborted:
		return m, func() tea.Msg { return LoginCancelledMsg{} }
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	m.mode = ModeValidating
	m.validError = nil
	return m, tea.Batch(m.spinner.Tick, m.validateAndSave(m.account(), m.formPassword))
}

// account builds the account settings from the form fields.
func (m Model) account() model.AccountConfig {
	acct := m.cfg.Account
	acct.IMAPHost = strings.TrimSpace(m.formIMAPHost)
	acct.IMAPPort = strings.TrimSpace(m.formIMAPPort)
	acct.SMTPHost = strings.TrimSpace(m.formSMTPHost)
	acct.SMTPPort = strings.TrimSpace(m.formSMTPPort)
	acct.Username = strings.TrimSpace(m.formUsername)
	acct.ArchiveMailbox = strings.TrimSpace(m.formArchive)
	acct.TLS = m.formTLS
	if acct.ID == "" {
		acct.ID = "default"
	}
	if acct.Mailbox == "" {
		acct.Mailbox = "INBOX"
	}
	return acct
}

// validateAndSave validates the connection then persists the password and
// the config if successful.
func (m Model) validateAndSave(acct model.AccountConfig, password string) tea.Cmd {
	validate := m.validate
	creds := m.creds
	path := m.configPath
	cfg := *m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		res := validatedMsg{account: acct, password: password}
		if validate != nil {
			name, err := validate(ctx, acct, password)
			res.name = name
			if err != nil {
				res.err = err
				return res
			}
		}

		if creds != nil {
			if err := creds.SetPassword(acct.ID, password); err != nil {
				res.err = fmt.Errorf("connection OK but saving password failed: %w", err)
				return res
			}
		}

		cfg.Account = acct
		if err := model.SaveConfig(path, &cfg); err != nil {
			res.err = fmt.Errorf("connection OK but saving config failed: %w", err)
			return res
		}
		return res
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&m.formIMAPHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&m.formIMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Description("SMTP server hostname").
				Placeholder("smtp.example.com").
				Value(&m.formSMTPHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Description("SMTP server port (e.g., 587)").
				Placeholder("587").
				Value(&m.formSMTPPort).
				Validate(validatePort),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description("Email account username").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Email account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
			huh.NewInput().
				Title("Archive Mailbox").
				Description("Folder to move archived mail to (optional)").
				Placeholder("Archive").
				Value(&m.formArchive),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Enable TLS encryption for connections").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formTLS),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// View renders the login view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeValidating:
		return style.Render(fmt.Sprintf(
			"%s Testing connection...\n\nPress esc to cancel.",
			m.spinner.View(),
		))
	case ModeValidateResult:
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		return style.Render(errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc edit"))
	}

	title := theme.TitleStyle.Render("Account Setup")
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, m.form.View()))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m *Model) resetFormFields() {
	acct := m.cfg.Account
	m.formIMAPHost = acct.IMAPHost
	m.formIMAPPort = acct.IMAPPort
	m.formSMTPHost = acct.SMTPHost
	m.formSMTPPort = acct.SMTPPort
	m.formUsername = acct.Username
	m.formArchive = acct.ArchiveMailbox
	m.formTLS = acct.TLS
	m.formPassword = ""
	if m.creds != nil && acct.ID != "" {
		if pw, err := m.creds.Password(acct.ID); err == nil {
			m.formPassword = pw
		}
	}
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
