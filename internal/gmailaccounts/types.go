package gmailaccounts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Errors for Gmail account operations
var (
	ErrAccountNotFound = errors.New("gmail account not found")
	ErrEmailRequired   = errors.New("email is required")
	ErrEmailTaken      = errors.New("account with this email already exists")
	ErrAccountLimit    = errors.New("maximum number of accounts reached")
)

// Defaults for the invoice-focused Gmail search filter.
const (
	DefaultLabelName  = "InvoiceManager"
	DefaultGmailQuery = `(has:attachment filename:pdf) OR ` +
		`("fizetesi link" OR "payment link" OR "invoice" OR "szamla") ` +
		`-in:spam -in:trash`
)

// Account is one Gmail mailbox invoices are imported from. CredentialsJSON
// is an opaque blob: OAuth tokens and our filter settings share it so legacy
// rows keep working.
type Account struct {
	ID              string
	Email           string
	IsActive        bool
	LastSync        *time.Time
	CredentialsJSON string
	CreatedAt       time.Time
}

// MarshalJSON keeps the credentials blob out of API responses; only the
// filter settings and an oauth_connected flag derived from it are exposed.
func (a *Account) MarshalJSON() ([]byte, error) {
	var lastSync *string
	if a.LastSync != nil {
		s := a.LastSync.UTC().Format(time.RFC3339)
		lastSync = &s
	}
	labelName, gmailQuery := ExtractFilterSettings(a.CredentialsJSON)
	return json.Marshal(struct {
		ID             string  `json:"id"`
		Email          string  `json:"email"`
		IsActive       bool    `json:"is_active"`
		LastSync       *string `json:"last_sync"`
		LabelName      string  `json:"label_name"`
		GmailQuery     string  `json:"gmail_query"`
		OauthConnected bool    `json:"oauth_connected"`
		CreatedAt      string  `json:"created_at"`
	}{
		ID:             a.ID,
		Email:          a.Email,
		IsActive:       a.IsActive,
		LastSync:       lastSync,
		LabelName:      labelName,
		GmailQuery:     gmailQuery,
		OauthConnected: HasOAuthCredentials(a.CredentialsJSON),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// CreateAccountInput represents input for registering a mailbox
type CreateAccountInput struct {
	Email           string `json:"email"`
	CredentialsJSON string `json:"credentials_json"`
}

// Validate validates the create account input
func (i *CreateAccountInput) Validate() error {
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
	if i.Email == "" || !strings.Contains(i.Email, "@") {
		return ErrEmailRequired
	}
	return nil
}

// UpdateFiltersInput carries new filter settings for an account.
type UpdateFiltersInput struct {
	LabelName  string `json:"label_name"`
	GmailQuery string `json:"gmail_query"`
}

// Repository defines the interface for Gmail account data access
type Repository interface {
	List(ctx context.Context) ([]*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, input *CreateAccountInput) (*Account, error)
	UpdateCredentials(ctx context.Context, id string, credentialsJSON string) (*Account, error)
	Deactivate(ctx context.Context, id string) (*Account, error)
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}

// parseCredentials parses the blob tolerantly: non-JSON values are kept
// under a marker key instead of being thrown away.
func parseCredentials(raw string) map[string]interface{} {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return map[string]interface{}{"_raw_credentials": raw}
	}
	if m, ok := parsed.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"_wrapped_credentials": parsed}
}

// ExtractFilterSettings reads the label/query pair from the credentials
// blob, falling back to defaults.
func ExtractFilterSettings(credentialsJSON string) (labelName, gmailQuery string) {
	labelName = DefaultLabelName
	gmailQuery = DefaultGmailQuery

	parsed := parseCredentials(credentialsJSON)
	settings, ok := parsed["_invoice_manager"].(map[string]interface{})
	if !ok {
		return labelName, gmailQuery
	}
	if v, ok := settings["label_name"].(string); ok && strings.TrimSpace(v) != "" {
		labelName = strings.TrimSpace(v)
	}
	if v, ok := settings["gmail_query"].(string); ok && strings.TrimSpace(v) != "" {
		gmailQuery = strings.TrimSpace(v)
	}
	return labelName, gmailQuery
}

// EmbedFilterSettings writes the label/query pair into the credentials blob
// without clobbering OAuth keys or anything else stored there.
func EmbedFilterSettings(credentialsJSON, labelName, gmailQuery string) (string, error) {
	parsed := parseCredentials(credentialsJSON)
	settings, ok := parsed["_invoice_manager"].(map[string]interface{})
	if !ok {
		settings = map[string]interface{}{}
	}
	settings["label_name"] = labelName
	settings["gmail_query"] = gmailQuery
	parsed["_invoice_manager"] = settings

	out, err := json.Marshal(parsed)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NormalizeFilterSettings trims the pair and substitutes defaults for empty
// values.
func NormalizeFilterSettings(labelName, gmailQuery string) (string, string) {
	labelName = strings.TrimSpace(labelName)
	if labelName == "" {
		labelName = DefaultLabelName
	}
	gmailQuery = strings.TrimSpace(gmailQuery)
	if gmailQuery == "" {
		gmailQuery = DefaultGmailQuery
	}
	return labelName, gmailQuery
}

// HasOAuthCredentials reports whether the blob holds a usable OAuth client.
func HasOAuthCredentials(credentialsJSON string) bool {
	parsed := parseCredentials(credentialsJSON)
	oauth, ok := parsed["oauth_credentials"].(map[string]interface{})
	if !ok {
		return false
	}
	clientID, ok := oauth["client_id"].(string)
	return ok && clientID != ""
}
