package gmailaccounts

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestAccountMarshalJSON verifies the wire shape hides the credentials blob
// and derives oauth_connected from it.
func TestAccountMarshalJSON(t *testing.T) {
	account := &Account{
		ID:              "acc-1",
		Email:           "me@example.com",
		IsActive:        true,
		CredentialsJSON: `{"oauth_credentials":{"client_id":"abc"},"_invoice_manager":{"label_name":"Bills"}}`,
		CreatedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(account)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(raw)

	if strings.Contains(got, "abc") || strings.Contains(got, "credentials_json") {
		t.Errorf("Marshal() = %s, leaks credentials", got)
	}
	if !strings.Contains(got, `"oauth_connected":true`) {
		t.Errorf("Marshal() = %s, missing oauth_connected=true", got)
	}
	if !strings.Contains(got, `"label_name":"Bills"`) {
		t.Errorf("Marshal() = %s, missing stored label", got)
	}

	t.Run("no oauth credentials", func(t *testing.T) {
		account.CredentialsJSON = ""
		raw, err := json.Marshal(account)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if !strings.Contains(string(raw), `"oauth_connected":false`) {
			t.Errorf("Marshal() = %s, want oauth_connected=false", raw)
		}
	})
}

// TestExtractFilterSettings tests reading label/query from the blob
func TestExtractFilterSettings(t *testing.T) {
	tests := []struct {
		name      string
		blob      string
		wantLabel string
		wantQuery string
	}{
		{
			name:      "empty blob yields defaults",
			blob:      "",
			wantLabel: DefaultLabelName,
			wantQuery: DefaultGmailQuery,
		},
		{
			name:      "non-JSON blob yields defaults",
			blob:      "legacy-token-string",
			wantLabel: DefaultLabelName,
			wantQuery: DefaultGmailQuery,
		},
		{
			name:      "blob without settings yields defaults",
			blob:      `{"oauth_credentials":{"client_id":"abc"}}`,
			wantLabel: DefaultLabelName,
			wantQuery: DefaultGmailQuery,
		},
		{
			name:      "stored settings win",
			blob:      `{"_invoice_manager":{"label_name":"Bills","gmail_query":"from:billing"}}`,
			wantLabel: "Bills",
			wantQuery: "from:billing",
		},
		{
			name:      "blank stored values fall back",
			blob:      `{"_invoice_manager":{"label_name":"  ","gmail_query":""}}`,
			wantLabel: DefaultLabelName,
			wantQuery: DefaultGmailQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, query := ExtractFilterSettings(tt.blob)
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
			if query != tt.wantQuery {
				t.Errorf("query = %q, want %q", query, tt.wantQuery)
			}
		})
	}
}

// TestEmbedFilterSettings verifies OAuth keys survive a filter update
func TestEmbedFilterSettings(t *testing.T) {
	blob := `{"oauth_credentials":{"client_id":"abc","refresh_token":"xyz"}}`

	updated, err := EmbedFilterSettings(blob, "Bills", "from:billing")
	if err != nil {
		t.Fatalf("EmbedFilterSettings() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(updated), &parsed); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}

	oauth, ok := parsed["oauth_credentials"].(map[string]interface{})
	if !ok || oauth["client_id"] != "abc" || oauth["refresh_token"] != "xyz" {
		t.Errorf("oauth credentials clobbered: %v", parsed["oauth_credentials"])
	}

	label, query := ExtractFilterSettings(updated)
	if label != "Bills" || query != "from:billing" {
		t.Errorf("roundtrip = (%q, %q), want (Bills, from:billing)", label, query)
	}

	t.Run("legacy non-JSON blob is preserved", func(t *testing.T) {
		updated, err := EmbedFilterSettings("legacy-token", "Bills", "from:billing")
		if err != nil {
			t.Fatalf("EmbedFilterSettings() error = %v", err)
		}
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(updated), &parsed); err != nil {
			t.Fatalf("result is not valid JSON: %v", err)
		}
		if parsed["_raw_credentials"] != "legacy-token" {
			t.Errorf("legacy value lost: %v", parsed)
		}
	})
}

// TestNormalizeFilterSettings tests trimming and defaulting
func TestNormalizeFilterSettings(t *testing.T) {
	label, query := NormalizeFilterSettings("  Bills  ", "")
	if label != "Bills" {
		t.Errorf("label = %q, want Bills", label)
	}
	if query != DefaultGmailQuery {
		t.Errorf("query = %q, want default", query)
	}
}

// TestHasOAuthCredentials tests the OAuth presence check
func TestHasOAuthCredentials(t *testing.T) {
	if HasOAuthCredentials("") {
		t.Error("empty blob reported as having credentials")
	}
	if HasOAuthCredentials(`{"oauth_credentials":{"client_id":""}}`) {
		t.Error("blank client_id reported as having credentials")
	}
	if !HasOAuthCredentials(`{"oauth_credentials":{"client_id":"abc"}}`) {
		t.Error("valid credentials not detected")
	}
}

// TestCreateAccountInputValidate tests email validation
func TestCreateAccountInputValidate(t *testing.T) {
	input := CreateAccountInput{Email: "  Someone@Example.COM "}
	if err := input.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if input.Email != "someone@example.com" {
		t.Errorf("email = %q, want lowercased trimmed", input.Email)
	}

	for _, bad := range []string{"", "   ", "not-an-email"} {
		input := CreateAccountInput{Email: bad}
		if err := input.Validate(); err == nil {
			t.Errorf("Validate(%q) expected error", bad)
		}
	}
}
