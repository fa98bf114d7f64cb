package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) error {
	if o.format == "json" {
		return o.printJSON(data)
	}
	return o.printText(data)
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) error {
	if o.format == "json" {
		return o.printJSON(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(o.w, msg)
	return err
}

func (o *Output) printJSON(data any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (o *Output) printText(data any) error {
	switch v := data.(type) {
	case User:
		return o.printUser(v)
	case AuthResult:
		return o.printAuthResult(v)
	case Club:
		return o.printClub(v)
	case Session:
		return o.printSession(v)
	case []Session:
		return o.printSessions(v)
	case SessionDetail:
		return o.printSessionDetail(v)
	case StageResult:
		return o.printStage(v)
	case TransitionResult:
		return o.printTransition(v)
	case Player:
		_, err := fmt.Fprintf(o.w, "Player: %s (%s)\n", v.Name, v.ID)
		return err
	case Transaction:
		_, err := fmt.Fprintf(o.w, "Recorded %s of %s for %s (%s)\n", v.Type, formatAmount(v.Amount), v.PlayerID, v.ID)
		return err
	case []Transaction:
		return o.printTransactions(v)
	case HealthResult:
		_, err := fmt.Fprintf(o.w, "Status: %s\n", v.Status)
		return err
	default:
		// Fallback to JSON for unknown types
		return o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID          string  `json:"id"`
	Username    string  `json:"username,omitempty"`
	DisplayName string  `json:"display_name"`
	IsGuest     bool    `json:"is_guest"`
	ClubID      *string `json:"club_id"`
}

// AuthResult combines user and token
type AuthResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Club response type
type Club struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinCode string `json:"join_code"`
	OwnerID  string `json:"owner_id"`
}

// Session response type
type Session struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Currency           string     `json:"currency"`
	CurrencySymbol     string     `json:"currency_symbol"`
	ClubID             *string    `json:"club_id"`
	CreatedAt          time.Time  `json:"created_at"`
	ChipEntryStartedAt *time.Time `json:"chip_entry_started_at"`
	FinalizedAt        *time.Time `json:"finalized_at"`
}

// Player response type
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ProfileID *string   `json:"profile_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Buyins    float64   `json:"buyins"`
	Cashouts  float64   `json:"cashouts"`
	Net       float64   `json:"net"`
}

// Transaction response type
type Transaction struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Gate response type
type Gate struct {
	Allowed bool     `json:"allowed"`
	Reason  string   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Gates response type
type Gates struct {
	StartChipEntry Gate `json:"start_chip_entry"`
	Finalize       Gate `json:"finalize"`
}

// StageResult response type
type StageResult struct {
	Stage     string `json:"stage"`
	Gates     Gates  `json:"gates"`
	Writing   bool   `json:"writing"`
	LastError string `json:"last_error,omitempty"`
}

// Totals response type
type Totals struct {
	Buyins      float64 `json:"buyins"`
	Cashouts    float64 `json:"cashouts"`
	Discrepancy float64 `json:"discrepancy"`
}

// SessionDetail response type
type SessionDetail struct {
	Session      Session       `json:"session"`
	Players      []Player      `json:"players"`
	Transactions []Transaction `json:"transactions"`
	Totals       Totals        `json:"totals"`
	StageResult
}

// TransitionResult response type
type TransitionResult struct {
	Applied bool          `json:"applied"`
	Stage   string        `json:"stage"`
	Session SessionDetail `json:"session"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (o *Output) printUser(u User) error {
	guest := "no"
	if u.IsGuest {
		guest = "yes"
	}
	club := "none"
	if u.ClubID != nil {
		club = *u.ClubID
	}
	_, err := fmt.Fprintf(o.w, "User: %s (%s)\nGuest: %s\nClub: %s\n", u.DisplayName, u.ID, guest, club)
	return err
}

func (o *Output) printAuthResult(a AuthResult) error {
	if err := o.printUser(a.User); err != nil {
		return err
	}
	_, err := fmt.Fprintf(o.w, "Token expires: %s\n", a.ExpiresAt.Format(time.RFC3339))
	return err
}

func (o *Output) printClub(c Club) error {
	_, err := fmt.Fprintf(o.w, "Club: %s (%s)\nJoin code: %s\n", c.Name, c.ID, c.JoinCode)
	return err
}

func (o *Output) printSession(s Session) error {
	_, err := fmt.Fprintf(o.w, "Session: %s (%s)\nCurrency: %s %s\n", s.Name, s.ID, s.Currency, s.CurrencySymbol)
	return err
}

func (o *Output) printSessions(sessions []Session) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(o.w, "No sessions")
		return err
	}
	data := pterm.TableData{{"ID", "Name", "Currency", "Created"}}
	for _, s := range sessions {
		data = append(data, []string{s.ID, s.Name, s.Currency, s.CreatedAt.Format(time.DateTime)})
	}
	return o.table(data)
}

func (o *Output) printSessionDetail(d SessionDetail) error {
	if err := o.printSession(d.Session); err != nil {
		return err
	}
	if err := o.printStage(d.StageResult); err != nil {
		return err
	}

	data := pterm.TableData{{"Player", "ID", "Buy-ins", "Cash-outs", "Net"}}
	for _, p := range d.Players {
		data = append(data, []string{p.Name, p.ID, formatAmount(p.Buyins), formatAmount(p.Cashouts), formatAmount(p.Net)})
	}
	if err := o.table(data); err != nil {
		return err
	}

	_, err := fmt.Fprintf(o.w, "Total buy-ins: %s%s  Total cash-outs: %s%s  Discrepancy: %s%s\n",
		d.Session.CurrencySymbol, formatAmount(d.Totals.Buyins),
		d.Session.CurrencySymbol, formatAmount(d.Totals.Cashouts),
		d.Session.CurrencySymbol, formatAmount(d.Totals.Discrepancy),
	)
	return err
}

func (o *Output) printStage(s StageResult) error {
	lines := pterm.Sprintfln("Stage: %s", pterm.LightCyan(s.Stage))
	lines += gateLine("Start chip entry", s.Gates.StartChipEntry)
	lines += gateLine("Finalize", s.Gates.Finalize)
	if s.Writing {
		lines += pterm.Sprintfln("%s", pterm.LightYellow("A transition is being saved"))
	}
	if s.LastError != "" {
		lines += pterm.Sprintfln("Last error: %s", pterm.LightRed(s.LastError))
	}
	_, err := fmt.Fprint(o.w, lines)
	return err
}

func gateLine(label string, g Gate) string {
	if g.Allowed {
		return pterm.Sprintfln("%s: %s", label, pterm.LightGreen("allowed"))
	}
	return pterm.Sprintfln("%s: %s", label, pterm.LightRed(g.Message))
}

func (o *Output) printTransition(t TransitionResult) error {
	if _, err := fmt.Fprintf(o.w, "Transition applied, stage is now %s\n", t.Stage); err != nil {
		return err
	}
	return o.printSessionDetail(t.Session)
}

func (o *Output) printTransactions(txns []Transaction) error {
	if len(txns) == 0 {
		_, err := fmt.Fprintln(o.w, "No transactions")
		return err
	}
	data := pterm.TableData{{"Time", "Player", "Type", "Amount"}}
	for _, t := range txns {
		data = append(data, []string{t.CreatedAt.Format(time.DateTime), t.PlayerID, t.Type, formatAmount(t.Amount)})
	}
	return o.table(data)
}

func (o *Output) table(data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(o.w, s)
	return err
}
