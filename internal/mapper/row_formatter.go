package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/encoding"
)

const ledgerTimeLayout = "02/01/2006, 3:04:05 pm"

// ledgerZone is IST. India has no DST so a fixed offset is exact when the
// host lacks tzdata
var ledgerZone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*60*60+30*60)
}()

// PaymentContext is a payment joined with its owner and the owner's forms
type PaymentContext struct {
	Payment models.Payment
	Owner   *models.User
	Forms   []models.Form
}

// PaymentRow renders a Finance ledger row
func PaymentRow(pc PaymentContext) []any {
	p := pc.Payment
	var name, email string
	if pc.Owner != nil {
		name = pc.Owner.Name
		email = encoding.NormalizeEmail(pc.Owner.Email)
	}

	return []any{
		FormatTime(p.CreatedAt),
		name,
		email,
		models.HexOrEmpty(p.ID),
		p.TransactionID,
		number(p.AmountInNumbers),
		number(p.AccommodationPrice),
		TotalPlayers(pc.Forms),
		strings.Join(Sports(pc.Forms), ", "),
		Category(pc.Forms),
		p.Status,
		p.RegistrationStatus,
		p.SendEmail,
	}
}

// UserRow renders a Users ledger row. The key column carries the folded email
func UserRow(u models.User) []any {
	return []any{
		models.HexOrEmpty(u.ID),
		encoding.NormalizeEmail(u.Email),
		u.Name,
		u.Phone,
		u.College,
		u.EmailVerified,
		u.RegistrationDone,
		u.PaymentDone,
		submittedSports(u.SubmittedForms),
		FormatTime(u.CreatedAt),
	}
}

// FormRow renders a Registrations ledger row; owner is optional
func FormRow(f models.Form, owner *models.User) []any {
	var ownerEmail string
	if owner != nil {
		ownerEmail = encoding.NormalizeEmail(owner.Email)
	}
	var coach string
	if c := f.Fields.CoachFields; c != nil {
		coach = c.Name
	}

	return []any{
		models.HexOrEmpty(f.ID),
		models.HexOrEmpty(f.OwnerID),
		ownerEmail,
		f.Title,
		f.Status,
		f.PlayerCount(),
		PlayerNames(f.Fields.PlayerFields),
		coach,
		FormatTime(f.CreatedAt),
		FormatTime(f.UpdatedAt),
	}
}

// DueRow renders a Due Payments ledger row
func DueRow(r models.DuePaymentRecord, generatedAt time.Time) []any {
	return []any{
		models.HexOrEmpty(r.UserID),
		r.Name,
		encoding.NormalizeEmail(r.Email),
		models.HexOrEmpty(r.PaymentID),
		r.OriginalPlayerCount,
		r.CurrentPlayerCount,
		r.PlayerDifference,
		r.AmountDue,
		r.Status,
		FormatTime(generatedAt),
	}
}

// FormatTime renders t for humans reading the ledger. Zero renders as ""
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(ledgerZone).Format(ledgerTimeLayout)
}

// PlayerNames flattens participants into "A, B, C", skipping blank names
func PlayerNames(players []models.Participant) string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		if n := strings.TrimSpace(p.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

func TotalPlayers(forms []models.Form) int {
	total := 0
	for _, f := range forms {
		total += f.PlayerCount()
	}
	return total
}

// Sports lists form titles in form order, without duplicates
func Sports(forms []models.Form) []string {
	seen := make(map[string]struct{}, len(forms))
	out := make([]string, 0, len(forms))
	for _, f := range forms {
		t := strings.TrimSpace(f.Title)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Category is "Team" when any form has more than one player
func Category(forms []models.Form) string {
	if len(forms) == 0 {
		return ""
	}
	for _, f := range forms {
		if f.PlayerCount() > 1 {
			return "Team"
		}
	}
	return "Individual"
}

func submittedSports(forms map[string]models.SubmittedForm) string {
	if len(forms) == 0 {
		return ""
	}
	b, err := json.Marshal(forms)
	if err != nil {
		return ""
	}
	return string(b)
}

// number keeps whole rupee amounts integral so the sheet doesn't show "800.0"
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// CellString renders any sheet cell as text; nil renders as ""
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
